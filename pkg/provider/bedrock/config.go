package bedrock

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/llmarena/arena/pkg/api"
)

const (
	// Scheme marks a base URL as a Bedrock region reference.
	Scheme = "bedrock"

	// DefaultRegion is used when the model record names no region.
	DefaultRegion = "us-east-1"

	compositeSep = "@"
)

// Config is the resolved connection data for one Bedrock model.
type Config struct {
	Region          string
	ModelID         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// IsBedrock reports whether the model record addresses Bedrock.
func IsBedrock(m api.ModelConfig) bool {
	if m.ResponseFormat == api.FormatBedrock {
		return true
	}
	if strings.HasPrefix(m.Model, Scheme+compositeSep) {
		return true
	}
	return strings.HasPrefix(m.BaseURL, Scheme+"://")
}

// ParseModelID extracts the Bedrock model id. "bedrock@anthropic.claude-v2"
// yields "anthropic.claude-v2"; a plain id is returned unchanged.
func ParseModelID(model string) string {
	if _, id, ok := strings.Cut(model, compositeSep); ok && id != "" {
		return id
	}
	return model
}

// ParseRegion reads the region from a "bedrock://<region>" base URL.
// Anything else yields DefaultRegion.
func ParseRegion(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme != Scheme || u.Host == "" {
		return DefaultRegion
	}
	return u.Host
}

// ParseCredentials splits "ACCESS_KEY_ID:SECRET_ACCESS_KEY[:SESSION_TOKEN]".
func ParseCredentials(apiKey string) (accessKeyID, secret, session string, err error) {
	parts := strings.SplitN(apiKey, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("bedrock api key must have the form ACCESS_KEY_ID:SECRET_ACCESS_KEY")
	}
	if len(parts) == 3 {
		session = parts[2]
	}
	return parts[0], parts[1], session, nil
}

// ConfigFromModel resolves a directory record into a Config.
func ConfigFromModel(m api.ModelConfig) (Config, error) {
	ak, sk, token, err := ParseCredentials(m.APIKey)
	if err != nil {
		return Config{}, api.NewProviderError(fmt.Sprintf("model %s: %v", m.Model, err))
	}
	return Config{
		Region:          ParseRegion(m.BaseURL),
		ModelID:         ParseModelID(m.Model),
		AccessKeyID:     ak,
		SecretAccessKey: sk,
		SessionToken:    token,
	}, nil
}

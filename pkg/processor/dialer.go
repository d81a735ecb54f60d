package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/provider"
	"github.com/llmarena/arena/pkg/provider/bedrock"
	"github.com/llmarena/arena/pkg/provider/openaicompat"
)

// Dialer returns the provider that serves a model record.
type Dialer interface {
	Dial(model api.ModelConfig) (provider.Provider, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(model api.ModelConfig) (provider.Provider, error)

// Dial calls f(model).
func (f DialerFunc) Dial(model api.ModelConfig) (provider.Provider, error) {
	return f(model)
}

// CachingDialer builds one provider per distinct endpoint and credential and
// reuses it, so connection pools are shared across requests.
type CachingDialer struct {
	mu        sync.Mutex
	providers map[string]provider.Provider
	timeout   time.Duration
}

// NewCachingDialer creates a dialer. timeout bounds connection setup and
// response headers of OpenAI-compatible backends.
func NewCachingDialer(timeout time.Duration) *CachingDialer {
	return &CachingDialer{
		providers: make(map[string]provider.Provider),
		timeout:   timeout,
	}
}

// Dial returns the cached provider for model, creating it on first use.
func (d *CachingDialer) Dial(model api.ModelConfig) (provider.Provider, error) {
	key := dialKey(model)

	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.providers[key]; ok {
		return p, nil
	}

	var p provider.Provider
	if FormatOf(model) == api.FormatBedrock {
		cfg, err := bedrock.ConfigFromModel(model)
		if err != nil {
			return nil, err
		}
		p = bedrock.New(cfg)
	} else {
		p = openaicompat.NewClient(model.BaseURL, model.APIKey, d.timeout)
	}
	d.providers[key] = p
	return p, nil
}

// Len returns the number of cached providers.
func (d *CachingDialer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.providers)
}

// Close releases every cached provider.
func (d *CachingDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, p := range d.providers {
		p.Close()
		delete(d.providers, key)
	}
	return nil
}

// dialKey identifies a provider by everything that shapes its connection.
// The API key is hashed so it never sits in the map in clear text.
func dialKey(m api.ModelConfig) string {
	h := sha256.Sum256([]byte(m.APIKey))
	return string(FormatOf(m)) + "|" + m.Model + "|" + m.BaseURL + "|" + hex.EncodeToString(h[:8])
}

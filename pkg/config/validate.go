package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/llmarena/arena/pkg/api"
)

// Validate checks the configuration and reports every problem at once,
// each prefixed with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	if c.Engine.AssignmentSize < 1 || c.Engine.AssignmentSize > 2 {
		errs = append(errs, fmt.Errorf("engine.assignment_size must be 1 or 2, got %d", c.Engine.AssignmentSize))
	}
	if c.Engine.ProviderTimeout < 0 || c.Engine.PersistTimeout < 0 || c.Engine.HTTPTimeout < 0 {
		errs = append(errs, errors.New("engine timeouts must not be negative"))
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, errors.New(`storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is "postgres"`))
		}
	default:
		errs = append(errs, fmt.Errorf(`storage.type must be "memory" or "postgres", got %q`, c.Storage.Type))
	}

	switch c.Auth.Type {
	case "none":
	case "jwt":
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, errors.New(`auth.jwt.secret or auth.jwt.secret_file is required when auth.type is "jwt"`))
		}
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, errors.New(`auth.api_keys must not be empty when auth.type is "apikey"`))
		}
	default:
		errs = append(errs, fmt.Errorf(`auth.type must be "none", "jwt" or "apikey", got %q`, c.Auth.Type))
	}
	for i, k := range c.Auth.APIKeys {
		if k.Key == "" && k.KeyFile == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
		}
		if k.Name == "" && k.Subject == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d]: name or subject is required", i))
		}
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Model == "" {
			errs = append(errs, fmt.Errorf("models[%d].model is required", i))
			continue
		}
		if seen[m.Model] {
			errs = append(errs, fmt.Errorf("models[%d]: duplicate model %q", i, m.Model))
		}
		seen[m.Model] = true

		switch m.ResponseFormat {
		case "", api.FormatStandard, api.FormatHarmony, api.FormatThinking, api.FormatBedrock:
		default:
			errs = append(errs, fmt.Errorf("models[%d].response_format %q is not supported", i, m.ResponseFormat))
		}
		if m.BaseURL == "" && m.ResponseFormat != api.FormatBedrock && !strings.HasPrefix(m.Model, "bedrock@") {
			errs = append(errs, fmt.Errorf("models[%d].base_url is required", i))
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf(`logging.format must be "text" or "json", got %q`, c.Logging.Format))
	}

	return errors.Join(errs...)
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llmarena/arena/pkg/debug"
)

// Load builds the configuration from defaults, the YAML file, environment
// overrides and _file references, then validates it.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if filePath := discoverConfigFile(configPath); filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the explicit path, ARENA_CONFIG, ./config.yaml
// or /etc/arena/config.yaml, in that order. Empty when none exists.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("ARENA_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/arena/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile parses a YAML file over cfg. Absent fields keep their
// current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps ARENA_* variables onto cfg. Malformed numeric or
// duration values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	env := envReader{}

	env.integer("ARENA_PORT", &cfg.Server.Port)
	env.integer("ARENA_ASSIGNMENT_SIZE", &cfg.Engine.AssignmentSize)
	env.str("ARENA_DEFAULT_CATEGORY", &cfg.Engine.DefaultCategory)
	env.duration("ARENA_PROVIDER_TIMEOUT", &cfg.Engine.ProviderTimeout)
	env.duration("ARENA_PERSIST_TIMEOUT", &cfg.Engine.PersistTimeout)
	env.boolean("ARENA_ERROR_FRAMES", &cfg.Engine.ErrorFrames)
	env.str("ARENA_STORAGE", &cfg.Storage.Type)
	env.integer("ARENA_STORAGE_SIZE", &cfg.Storage.MaxSize)
	env.str("ARENA_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	env.str("ARENA_AUTH_TYPE", &cfg.Auth.Type)
	env.str("ARENA_LOG_FORMAT", &cfg.Logging.Format)

	// JWT_SECRET is the name existing deployments already use.
	env.str("JWT_SECRET", &cfg.Auth.JWT.Secret)
	env.str("ARENA_JWT_SECRET", &cfg.Auth.JWT.Secret)

	if v := os.Getenv("ARENA_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			env.errs = append(env.errs, fmt.Errorf("ARENA_API_KEYS: %w", err))
		} else {
			cfg.Auth.APIKeys = keys
		}
	}

	// ARENA_MODELS replaces the configured model list.
	if v := os.Getenv("ARENA_MODELS"); v != "" {
		var models []ModelEntry
		if err := json.Unmarshal([]byte(v), &models); err != nil {
			env.errs = append(env.errs, fmt.Errorf("ARENA_MODELS: %w", err))
		} else {
			cfg.Models = models
		}
	}

	return env.err()
}

// envReader collects parse errors while applying overrides.
type envReader struct {
	errs []error
}

func (e *envReader) str(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = n
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = d
}

func (e *envReader) boolean(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = b
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

// resolveFileReferences fills empty secret fields from their _file
// counterparts. Surrounding whitespace is trimmed.
func resolveFileReferences(cfg *Config) error {
	resolve := func(field string, file string, dst *string) error {
		if file == "" || *dst != "" {
			return nil
		}
		val, err := readSecretFile(file)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		*dst = val
		return nil
	}

	if err := resolve("storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN); err != nil {
		return err
	}
	if err := resolve("auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret); err != nil {
		return err
	}
	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		if err := resolve(fmt.Sprintf("auth.api_keys[%d].key_file", i), k.KeyFile, &k.Key); err != nil {
			return err
		}
	}
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if err := resolve(fmt.Sprintf("models[%d].api_key_file", i), m.APIKeyFile, &m.APIKey); err != nil {
			return err
		}
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

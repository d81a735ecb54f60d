// Package config provides unified configuration for the arena server.
//
// Configuration is loaded in layers:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ARENA_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/llmarena/arena/pkg/api"
)

// Config holds all configuration for the arena server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Models        []ModelEntry        `yaml:"models"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings. There is no write timeout:
// chat responses stream for as long as the slower model takes.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
}

// EngineConfig holds chat orchestration settings.
type EngineConfig struct {
	AssignmentSize  int           `yaml:"assignment_size"`  // default: 2
	DefaultCategory string        `yaml:"default_category"` // default: "general"
	ProviderTimeout time.Duration `yaml:"provider_timeout"` // default: 5m
	PersistTimeout  time.Duration `yaml:"persist_timeout"`  // default: 10s
	ErrorFrames     bool          `yaml:"error_frames"`
	MaxMessageSize  int           `yaml:"max_message_size"` // default: 64 KiB
	StrictThreadID  bool          `yaml:"strict_thread_id"` // default: true
	// HTTPTimeout bounds a whole request to an OpenAI-compatible backend,
	// streaming included. Zero leaves it to provider_timeout.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// StorageConfig holds thread and model persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`
	MaxConns       int32  `yaml:"max_conns"` // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"` // "none", "jwt" or "apikey", default: "none"
	JWT       JWTConfig       `yaml:"jwt"`
	APIKeys   []APIKeyConfig  `yaml:"api_keys"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig configures session token verification.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	SecretFile string        `yaml:"secret_file"`
	CookieName string        `yaml:"cookie_name"` // default: "token"
	UserClaim  string        `yaml:"user_claim"`  // default: "sub"
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	Leeway     time.Duration `yaml:"leeway"`
}

// APIKeyConfig describes a service client key. Keys are accepted alongside
// session tokens whenever any are configured.
type APIKeyConfig struct {
	Name        string `yaml:"name" json:"name"`
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"`
	Subject     string `yaml:"subject" json:"subject"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// RateLimitConfig enables per-subject request limits.
type RateLimitConfig struct {
	// DefaultRPM applies to tiers without an entry. Zero disables limiting.
	DefaultRPM int            `yaml:"default_rpm"`
	Tiers      map[string]int `yaml:"tiers"` // tier -> requests per minute
}

// ModelEntry seeds one record of the model directory at startup.
type ModelEntry struct {
	Model          string             `yaml:"model" json:"model"`
	BaseURL        string             `yaml:"base_url" json:"baseURL"`
	APIKey         string             `yaml:"api_key" json:"apiKey"`
	APIKeyFile     string             `yaml:"api_key_file" json:"apiKeyFile"`
	ResponseFormat api.ResponseFormat `yaml:"response_format" json:"responseFormat"`
	FormatOptions  *api.FormatOptions `yaml:"format_options" json:"formatOptions"`
	Enabled        *bool              `yaml:"enabled" json:"enabled"`
}

// ModelConfig converts the entry to a directory record.
func (m ModelEntry) ModelConfig() api.ModelConfig {
	return api.ModelConfig{
		Model:          m.Model,
		BaseURL:        m.BaseURL,
		APIKey:         m.APIKey,
		ResponseFormat: m.ResponseFormat,
		FormatOptions:  m.FormatOptions,
		Enabled:        m.Enabled,
	}
}

// ModelConfigs converts every configured model.
func (c *Config) ModelConfigs() []api.ModelConfig {
	out := make([]api.ModelConfig, len(c.Models))
	for i, m := range c.Models {
		out[i] = m.ModelConfig()
	}
	return out
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// LoggingConfig selects log output. ARENA_DEBUG and ARENA_LOG_LEVEL take
// precedence at runtime.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Engine: EngineConfig{
			AssignmentSize:  2,
			DefaultCategory: "general",
			ProviderTimeout: 5 * time.Minute,
			PersistTimeout:  10 * time.Second,
			MaxMessageSize:  64 * 1024,
			StrictThreadID:  true,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
			JWT: JWTConfig{
				CookieName: "token",
				UserClaim:  "sub",
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

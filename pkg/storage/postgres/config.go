package postgres

import "time"

// Config holds the pool and startup settings of the store.
type Config struct {
	// DSN is a libpq connection string or URL,
	// e.g. "postgres://arena:secret@db:5432/arena?sslmode=require".
	DSN string

	// MaxConns caps the pool. Each chat turn holds a connection only for
	// the duration of a single statement. Default 25.
	MaxConns int32

	// MinConns idle connections are kept open. Default 2, never above MaxConns.
	MinConns int32

	// MaxConnLifetime recycles connections. Default 5 minutes.
	MaxConnLifetime time.Duration

	// ConnectTimeout bounds the startup ping. Default 10 seconds.
	ConnectTimeout time.Duration

	// MigrateOnStart applies embedded migrations in New.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = 25
	}
	if c.MinConns <= 0 {
		c.MinConns = 2
	}
	c.MinConns = min(c.MinConns, c.MaxConns)
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 5 * time.Minute
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

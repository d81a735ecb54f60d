package engine

import (
	"time"

	"github.com/llmarena/arena/pkg/api"
)

// Config holds configuration for the chat engine.
type Config struct {
	// AssignmentSize is the number of models drawn for a new thread.
	// Zero means 2.
	AssignmentSize int

	// DefaultCategory is stored on threads created without a category.
	DefaultCategory string

	// ProviderTimeout bounds each side's stream. Zero means 5 minutes.
	ProviderTimeout time.Duration

	// PersistTimeout bounds each write of a side's answer. The write runs
	// detached from the request so a client disconnect does not lose
	// output. Zero means 10 seconds.
	PersistTimeout time.Duration

	// ErrorFrames emits an "error" event when a side fails.
	ErrorFrames bool

	Validation api.ValidationConfig
}

const (
	defaultAssignmentSize  = 2
	defaultCategory        = "general"
	defaultProviderTimeout = 5 * time.Minute
	defaultPersistTimeout  = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.AssignmentSize <= 0 {
		c.AssignmentSize = defaultAssignmentSize
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = defaultCategory
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = defaultProviderTimeout
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = defaultPersistTimeout
	}
	return c
}

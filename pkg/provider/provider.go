package provider

import "context"

// Provider abstracts a streaming model backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the adapter identifier (e.g., "openaicompat", "bedrock").
	Name() string

	// Stream starts a completion. The returned channel receives Event values
	// and is closed by the provider when the stream completes, errors, or
	// ctx is cancelled. An error is returned only if the stream could not be
	// started at all.
	Stream(ctx context.Context, req *Request) (<-chan Event, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

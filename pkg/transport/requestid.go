package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/llmarena/arena/pkg/api"
)

// RequestID returns middleware that assigns a unique request ID to each
// request. An ID already in the context (set by the HTTP adapter from the
// X-Request-ID header) is kept.
func RequestID() Middleware {
	return func(next ChatStreamer) ChatStreamer {
		return ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, NewRequestID())
			}
			return next.StreamChat(ctx, req, w)
		})
	}
}

// NewRequestID returns a random UUID string.
func NewRequestID() string {
	return uuid.NewString()
}

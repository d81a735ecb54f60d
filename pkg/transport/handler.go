package transport

import (
	"context"

	"github.com/llmarena/arena/pkg/api"
)

// ChatStreamer runs one chat turn: it resolves the thread, streams both
// sides and writes every outbound event to w. An error returned before the
// first event reaches the client becomes an HTTP error response; after that
// the stream is simply closed.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req *api.ChatRequest, w EventWriter) error
}

// ChatStreamerFunc is an adapter that allows using an ordinary function
// as a ChatStreamer.
type ChatStreamerFunc func(ctx context.Context, req *api.ChatRequest, w EventWriter) error

// StreamChat calls f(ctx, req, w).
func (f ChatStreamerFunc) StreamChat(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
	return f(ctx, req, w)
}

// ThreadReader serves thread lookups for the history and info routes.
// Implementations scope the lookup to the identity in ctx and return a
// not_found APIError for threads the caller cannot see.
type ThreadReader interface {
	ReadThread(ctx context.Context, threadID string) (*api.Thread, error)
}

// ThreadCreator opens an unassigned thread owned by the caller. Models are
// assigned on the thread's first chat turn.
type ThreadCreator interface {
	CreateThread(ctx context.Context, req *api.CreateThreadRequest) (string, error)
}

// EventWriter receives the outbound events of one chat turn.
//
// Implementations must be safe for concurrent use: both sides of a thread
// write through the same writer. A history event is accepted only as the
// first event; any later one returns an error.
type EventWriter interface {
	// WriteEvent serializes and sends one event.
	WriteEvent(ctx context.Context, event api.OutboundEvent) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/llmarena/arena/pkg/api"
)

// Recovery returns middleware that catches panics in the streamer and
// converts them to server errors. The server keeps accepting requests after
// a recovered panic.
func Recovery() Middleware {
	return func(next ChatStreamer) ChatStreamer {
		return ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in chat streamer",
						"request_id", RequestIDFromContext(ctx),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.StreamChat(ctx, req, w)
		})
	}
}

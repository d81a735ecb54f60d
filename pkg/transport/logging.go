package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/llmarena/arena/pkg/api"
)

// Logging returns middleware that emits one structured log entry per chat
// turn with the request ID, thread, duration and outcome. HTTP status codes
// are not visible at this level; the adapter logs those.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatStreamer) ChatStreamer {
		return ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
			start := time.Now()

			err := next.StreamChat(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("thread_id", req.ThreadID),
				slog.Int("message_bytes", len(req.Message)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "chat failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "chat completed", attrs...)
			}
			return err
		})
	}
}

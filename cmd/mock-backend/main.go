// Command mock-backend runs a deterministic OpenAI-compatible Chat
// Completions server for local development and end-to-end testing of
// the arena server. The streaming dialect follows the model name suffix
// (see package mockbackend).
//
// Configuration:
//
//	MOCK_PORT        - Listen port (default: 9090)
//	MOCK_MODELS      - Comma-separated ids reported by /v1/models
//	MOCK_CHUNK_DELAY - Pause between streamed deltas (e.g. 50ms)
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/llmarena/arena/test/mockbackend"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	var opts []mockbackend.Option
	if v := os.Getenv("MOCK_MODELS"); v != "" {
		opts = append(opts, mockbackend.WithModels(strings.Split(v, ",")...))
	}
	if v := os.Getenv("MOCK_CHUNK_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid MOCK_CHUNK_DELAY", "value", v, "error", err)
			os.Exit(1)
		}
		opts = append(opts, mockbackend.WithChunkDelay(d))
	}

	srv := &http.Server{Addr: ":" + port, Handler: mockbackend.New(opts...)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

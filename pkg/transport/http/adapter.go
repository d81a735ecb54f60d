package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/transport"
)

// Adapter serves the chat API over HTTP.
type Adapter struct {
	streamer transport.ChatStreamer
	threads  transport.ThreadReader // nil disables the history and info routes
	creator  transport.ThreadCreator
	mux      *http.ServeMux
	config   Config
	logger   *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr        string
	MaxBodySize int64
	Logger      *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// NewAdapter creates an HTTP adapter. The ThreadReader is optional; when it
// also implements transport.ThreadCreator the create route is enabled.
// Middleware is applied to the streamer in the given order.
func NewAdapter(streamer transport.ChatStreamer, threads transport.ThreadReader, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		streamer = transport.Chain(middlewares...)(streamer)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Adapter{
		streamer: streamer,
		threads:  threads,
		mux:      http.NewServeMux(),
		config:   cfg,
		logger:   logger,
	}

	if c, ok := threads.(transport.ThreadCreator); ok {
		a.creator = c
	}

	a.mux.HandleFunc("POST /api/chat", a.handleChat)
	a.mux.HandleFunc("POST /api/chat/create", a.handleCreate)
	a.mux.HandleFunc("POST /api/chat/history", a.handleHistory)
	a.mux.HandleFunc("POST /api/thread/info", a.handleThreadInfo)

	return a
}

// Handler returns the http.Handler for this adapter, including HTTP-level
// request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware copies X-Request-ID into the context, generating
// one when absent, and echoes it on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// handleChat handles POST /api/chat.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	start := time.Now()
	rw := newNDJSONWriter(w)
	err := a.streamer.StreamChat(ctx, &req, rw)

	if err != nil {
		apiErr := transport.AsAPIError(err)
		if !rw.hasStarted() {
			transport.WriteAPIError(w, apiErr)
			return
		}
		// The body is already streaming; the client sees a truncated stream.
		a.logger.Warn("chat stream ended with error",
			"request_id", transport.RequestIDFromContext(ctx),
			"thread_id", req.ThreadID,
			"error", apiErr.Message,
		)
		return
	}

	rw.close()
	a.logger.Debug("chat stream closed",
		"request_id", transport.RequestIDFromContext(ctx),
		"thread_id", req.ThreadID,
		"lines", rw.lines,
		"duration", time.Since(start),
	)
}

type createResponse struct {
	ThreadID string `json:"threadId"`
	Success  bool   `json:"success"`
}

// handleCreate handles POST /api/chat/create. An empty body is accepted.
func (a *Adapter) handleCreate(w http.ResponseWriter, r *http.Request) {
	if a.creator == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "thread creation is not available"),
			http.StatusNotImplemented,
		)
		return
	}

	var req api.CreateThreadRequest
	if r.ContentLength != 0 {
		if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
			transport.WriteErrorResponse(w, apiErr, status)
			return
		}
	}

	id, err := a.creator.CreateThread(r.Context(), &req)
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	writeJSON(w, createResponse{ThreadID: id, Success: true})
}

type historyResponse struct {
	MessagesLeft  []api.Message `json:"messagesLeft"`
	MessagesRight []api.Message `json:"messagesRight"`
}

// handleHistory handles POST /api/chat/history. Unknown, malformed or
// missing thread ids yield empty logs rather than an error.
func (a *Adapter) handleHistory(w http.ResponseWriter, r *http.Request) {
	if a.threads == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "thread history is not available"),
			http.StatusNotImplemented,
		)
		return
	}

	var req api.ThreadRequest
	if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	resp := historyResponse{MessagesLeft: []api.Message{}, MessagesRight: []api.Message{}}
	if req.ThreadID != "" && api.ValidateThreadID(req.ThreadID) {
		th, err := a.threads.ReadThread(r.Context(), req.ThreadID)
		switch {
		case err == nil:
			if th.Side1Messages != nil {
				resp.MessagesLeft = th.Side1Messages
			}
			if th.Side2Messages != nil {
				resp.MessagesRight = th.Side2Messages
			}
		case transport.AsAPIError(err).Type == api.ErrorTypeNotFound:
		default:
			transport.WriteAPIError(w, transport.AsAPIError(err))
			return
		}
	}

	writeJSON(w, resp)
}

type threadInfoResponse struct {
	ThreadID       string              `json:"threadId"`
	Category       string              `json:"category"`
	InitialContext *api.InitialContext `json:"initialContext,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	SelectedModels []string            `json:"selectedModels"`
}

// handleThreadInfo handles POST /api/thread/info.
func (a *Adapter) handleThreadInfo(w http.ResponseWriter, r *http.Request) {
	if a.threads == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "thread info is not available"),
			http.StatusNotImplemented,
		)
		return
	}

	var req api.ThreadRequest
	if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}
	if req.ThreadID == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("threadId", "thread ID is required"))
		return
	}
	if !api.ValidateThreadID(req.ThreadID) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("threadId", "invalid thread ID"))
		return
	}

	th, err := a.threads.ReadThread(r.Context(), req.ThreadID)
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}

	selected := th.SelectedModels
	if selected == nil {
		selected = []string{}
	}
	writeJSON(w, threadInfoResponse{
		ThreadID:       th.ID,
		Category:       th.Category,
		InitialContext: th.InitialContext,
		CreatedAt:      th.CreatedAt,
		UpdatedAt:      th.UpdatedAt,
		SelectedModels: selected,
	})
}

// decodeJSON checks the content type, limits the body and decodes it into
// v. On failure it returns the error and the status to send.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) (*api.APIError, int) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge
		}
		return api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()), http.StatusBadRequest
	}
	return nil, 0
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Package mockbackend serves a deterministic OpenAI-compatible Chat
// Completions endpoint. It backs the mock-backend command and the
// integration tests.
//
// The wire dialect is chosen by the model name suffix:
//
//	-harmony    content carries harmony channel markup
//	-thinking   content carries <think>...</think> blocks
//	-reasoning  reasoning is sent on the reasoning_content delta field
//	-fail       the request is rejected with HTTP 500
//
// Any other model streams plain content deltas.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// ChunkSize is the number of bytes carried by each content delta.
const ChunkSize = 8

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Role             string  `json:"role,omitempty"`
	Content          *string `json:"content,omitempty"`
	ReasoningContent *string `json:"reasoning_content,omitempty"`
}

// Backend is an http.Handler for the mock endpoints. The zero value is
// not usable; call New.
type Backend struct {
	mux      *http.ServeMux
	models   []string
	delay    time.Duration
	requests atomic.Int64
}

// Option configures a Backend.
type Option func(*Backend)

// WithModels sets the ids reported by GET /v1/models.
func WithModels(ids ...string) Option {
	return func(b *Backend) { b.models = ids }
}

// WithChunkDelay pauses between streamed deltas.
func WithChunkDelay(d time.Duration) Option {
	return func(b *Backend) { b.delay = d }
}

// New builds a Backend.
func New(opts ...Option) *Backend {
	b := &Backend{models: []string{"mock-standard", "mock-harmony", "mock-thinking", "mock-reasoning"}}
	for _, opt := range opts {
		opt(b)
	}
	b.mux = http.NewServeMux()
	b.mux.HandleFunc("POST /v1/chat/completions", b.handleChatCompletions)
	b.mux.HandleFunc("GET /v1/models", b.handleModels)
	b.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return b
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// Requests reports how many completion requests were received.
func (b *Backend) Requests() int64 {
	return b.requests.Load()
}

// Answer returns the visible text the backend produces for model given
// the conversation so far. Callers use it to predict streamed output.
func Answer(model string, messages []string) string {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1]
	}
	return fmt.Sprintf("%s (turn %d): %s", strings.TrimPrefix(model, "mock-"), len(messages), last)
}

// Reasoning returns the hidden reasoning the backend emits for model.
func Reasoning(model string) string {
	return "considering the question as " + model
}

func (b *Backend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	b.requests.Add(1)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if !req.Stream {
		writeError(w, http.StatusBadRequest, "only streaming requests are supported")
		return
	}
	if strings.HasSuffix(req.Model, "-fail") {
		writeError(w, http.StatusInternalServerError, "backend unavailable")
		return
	}

	var users []string
	for _, m := range req.Messages {
		if m.Role == "user" {
			users = append(users, m.Content)
		}
	}
	answer := Answer(req.Model, users)
	reasoning := Reasoning(req.Model)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	s := &sseStream{w: w, f: flusher, model: req.Model, delay: b.delay, r: r}
	s.send(chunkDelta{Role: "assistant"}, nil)

	switch {
	case strings.HasSuffix(req.Model, "-harmony"):
		s.content("<|start|>assistant<|channel|>analysis<|message|>" + reasoning + "<|end|>" +
			"<|start|>assistant<|channel|>final<|message|>" + answer + "<|return|>")
	case strings.HasSuffix(req.Model, "-thinking"):
		s.content("<think>" + reasoning + "</think>" + answer)
	case strings.HasSuffix(req.Model, "-reasoning"):
		s.reasoning(reasoning)
		s.content(answer)
	default:
		s.content(answer)
	}

	stop := "stop"
	s.send(chunkDelta{}, &stop)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (b *Backend) handleModels(w http.ResponseWriter, r *http.Request) {
	type model struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	data := make([]model, 0, len(b.models))
	for _, id := range b.models {
		data = append(data, model{ID: id, Object: "model", OwnedBy: "mock"})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
}

type sseStream struct {
	w     http.ResponseWriter
	f     http.Flusher
	r     *http.Request
	model string
	delay time.Duration
}

func (s *sseStream) content(text string) {
	for _, part := range split(text) {
		s.send(chunkDelta{Content: &part}, nil)
	}
}

func (s *sseStream) reasoning(text string) {
	for _, part := range split(text) {
		s.send(chunkDelta{ReasoningContent: &part}, nil)
	}
}

func (s *sseStream) send(delta chunkDelta, finish *string) {
	if s.r.Context().Err() != nil {
		return
	}
	data, _ := json.Marshal(chunk{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion.chunk",
		Model:   s.model,
		Choices: []chunkChoice{{Delta: delta, FinishReason: finish}},
	})
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	s.f.Flush()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-s.r.Context().Done():
		}
	}
}

// split cuts text into ChunkSize byte pieces without breaking a rune.
func split(text string) []string {
	var parts []string
	for len(text) > 0 {
		n := min(ChunkSize, len(text))
		for n < len(text) && !isRuneStart(text[n]) {
			n++
		}
		parts = append(parts, text[:n])
		text = text[n:]
	}
	return parts
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": "server_error", "code": status},
	})
}

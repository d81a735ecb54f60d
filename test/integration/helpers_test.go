// Package integration runs the arena HTTP stack end to end against the
// deterministic mock backend. Both servers are started in-process with
// net/http/httptest.
package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/auth"
	"github.com/llmarena/arena/pkg/auth/jwt"
	"github.com/llmarena/arena/pkg/directory"
	"github.com/llmarena/arena/pkg/engine"
	"github.com/llmarena/arena/pkg/processor"
	"github.com/llmarena/arena/pkg/storage"
	"github.com/llmarena/arena/pkg/storage/memory"
	"github.com/llmarena/arena/pkg/transport"
	transporthttp "github.com/llmarena/arena/pkg/transport/http"
	"github.com/llmarena/arena/test/mockbackend"
)

const testSecret = "integration-secret"

// store is what the environment needs from a storage backend.
type store interface {
	storage.ThreadStore
	storage.ModelStore
}

// TestEnvironment holds the arena server and mock backend for one test.
type TestEnvironment struct {
	Server  *httptest.Server
	Backend *httptest.Server
	Mock    *mockbackend.Backend
	Store   store
	Engine  *engine.Engine

	issuer *jwt.Authenticator
}

type envOptions struct {
	models      []string
	backendOpts []mockbackend.Option
	store       store
}

type envOption func(*envOptions)

// withModels seeds the directory with the given mock model ids. The
// format is derived from the id suffix.
func withModels(ids ...string) envOption {
	return func(o *envOptions) { o.models = ids }
}

func withBackend(opts ...mockbackend.Option) envOption {
	return func(o *envOptions) { o.backendOpts = opts }
}

func withStore(s store) envOption {
	return func(o *envOptions) { o.store = s }
}

// newTestEnv wires a full server: memory or supplied storage, directory
// seeded with mock models, engine with error frames, JWT auth and the
// HTTP transport. Model selection is deterministic: the directory lists
// models by id and the shuffle is disabled.
func newTestEnv(t *testing.T, opts ...envOption) *TestEnvironment {
	t.Helper()

	o := envOptions{models: []string{"mock-harmony", "mock-standard"}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = memory.New(100)
	}

	mock := mockbackend.New(o.backendOpts...)
	backend := httptest.NewServer(mock)
	t.Cleanup(backend.Close)

	ctx := context.Background()
	dir := directory.New(o.store, directory.WithShuffle(func(int, func(i, j int)) {}))
	var models []api.ModelConfig
	for _, id := range o.models {
		models = append(models, api.ModelConfig{
			Model:          id,
			BaseURL:        backend.URL,
			ResponseFormat: formatFor(id),
		})
	}
	if err := dir.Seed(ctx, models); err != nil {
		t.Fatalf("seeding models: %v", err)
	}

	dialer := processor.NewCachingDialer(10 * time.Second)
	t.Cleanup(func() { dialer.Close() })

	eng, err := engine.New(o.store, dir, processor.NewSet(dialer), transport.NewInFlightRegistry(), engine.Config{
		ProviderTimeout: 10 * time.Second,
		ErrorFrames:     true,
		Validation:      api.ValidationConfig{MaxMessageSize: 4096, StrictThreadID: true},
	})
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}

	issuer, err := jwt.New(jwt.Config{Secret: []byte(testSecret)})
	if err != nil {
		t.Fatalf("creating jwt authenticator: %v", err)
	}
	chain := &auth.AuthChain{Authenticators: []auth.Authenticator{issuer}, DefaultDecision: auth.No}

	srv := transporthttp.NewServer(eng, eng,
		transporthttp.WithReadinessCheck("storage", o.store.HealthCheck),
		transporthttp.WithHTTPMiddleware(auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)),
	)
	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)

	return &TestEnvironment{
		Server:  server,
		Backend: backend,
		Mock:    mock,
		Store:   o.store,
		Engine:  eng,
		issuer:  issuer,
	}
}

func formatFor(id string) api.ResponseFormat {
	switch {
	case strings.HasSuffix(id, "-harmony"):
		return api.FormatHarmony
	case strings.HasSuffix(id, "-thinking"):
		return api.FormatThinking
	default:
		return api.FormatStandard
	}
}

// token issues a session token for subject.
func (env *TestEnvironment) token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := env.issuer.Issue(subject, time.Hour)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return tok
}

// post sends body as JSON to path with the session cookie for subject.
// An empty subject sends no credentials.
func (env *TestEnvironment) post(t *testing.T, subject, path string, body any) *http.Response {
	t.Helper()
	return env.postContext(t, context.Background(), subject, path, body)
}

func (env *TestEnvironment) postContext(t *testing.T, ctx context.Context, subject, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, env.Server.URL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: env.token(t, subject)})
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// chat runs one turn and returns the decoded event lines.
func (env *TestEnvironment) chat(t *testing.T, subject, threadID, message string) []api.OutboundEvent {
	t.Helper()
	resp := env.post(t, subject, "/api/chat", api.ChatRequest{ThreadID: threadID, Message: message})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, body = %s", resp.StatusCode, readAll(t, resp.Body))
	}
	return readEvents(t, resp.Body)
}

func readEvents(t *testing.T, r io.Reader) []api.OutboundEvent {
	t.Helper()
	var events []api.OutboundEvent
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var ev api.OutboundEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("decoding event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	return events
}

// joined concatenates the content events of one type.
func joined(events []api.OutboundEvent, typ api.EventType) string {
	var b bytes.Buffer
	for _, ev := range events {
		if ev.Type == typ {
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding JSON: %v", err)
	}
}

type historyBody struct {
	MessagesLeft  []api.Message `json:"messagesLeft"`
	MessagesRight []api.Message `json:"messagesRight"`
}

type infoBody struct {
	ThreadID       string              `json:"threadId"`
	Category       string              `json:"category"`
	InitialContext *api.InitialContext `json:"initialContext"`
	SelectedModels []string            `json:"selectedModels"`
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

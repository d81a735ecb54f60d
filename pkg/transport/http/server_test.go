package http

import (
	"context"
	"errors"
	"io"
	"net"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/transport"
)

func chatBody() io.Reader {
	return strings.NewReader(`{"threadId":"` + testThreadID + `","message":"hi"}`)
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	streamer := &mockStreamer{events: []api.OutboundEvent{api.ContentEvent(api.Side1, "ok")}}
	srv := NewServer(streamer, nil, WithAddr("127.0.0.1:0"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	addr := ln.Addr().String()

	go srv.ServeOn(context.Background(), ln)
	time.Sleep(50 * time.Millisecond)

	resp, err := gohttp.Post("http://"+addr+"/api/chat", "application/json", chatBody())
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"content":"ok"`) {
		t.Errorf("body = %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func TestServerGracefulShutdown(t *testing.T) {
	slow := transport.ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w transport.EventWriter) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return w.WriteEvent(ctx, api.ContentEvent(api.Side1, "done"))
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	srv := NewServer(slow, nil,
		WithAddr("127.0.0.1:0"),
		WithShutdownTimeout(5*time.Second),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	addr := ln.Addr().String()

	go srv.ServeOn(context.Background(), ln)
	time.Sleep(50 * time.Millisecond)

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Post("http://"+addr+"/api/chat", "application/json", chatBody())
		if err != nil {
			responseCh <- 0
			return
		}
		defer resp.Body.Close()
		responseCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	if status := <-responseCh; status != gohttp.StatusOK {
		t.Errorf("slow request status = %d, want %d", status, gohttp.StatusOK)
	}
}

func TestServerShutdownCancelsInFlightTurns(t *testing.T) {
	reg := transport.NewInFlightRegistry()
	started := make(chan struct{})
	endless := transport.ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w transport.EventWriter) error {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		reg.TryAcquire("turn", cancel)
		defer reg.Release("turn")
		close(started)
		<-runCtx.Done()
		return nil
	})

	cancelled := make(chan int, 1)
	srv := NewServer(endless, nil,
		WithAddr("127.0.0.1:0"),
		WithShutdownTimeout(time.Minute),
		WithOnShutdown(func() { cancelled <- reg.CancelAll() }),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	addr := ln.Addr().String()
	go srv.ServeOn(context.Background(), ln)

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Post("http://"+addr+"/api/chat", "application/json", chatBody())
		if err != nil {
			responseCh <- 0
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		responseCh <- resp.StatusCode
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("turn never started")
	}

	// Without the hook the turn would hold the connection past this deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if n := <-cancelled; n != 1 {
		t.Errorf("hook cancelled %d turns, want 1", n)
	}
	if status := <-responseCh; status != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", status, gohttp.StatusOK)
	}
}

func TestServerRunStopsOnContext(t *testing.T) {
	srv := NewServer(&mockStreamer{}, nil, WithAddr("127.0.0.1:0"), WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServerHealthAndReadiness(t *testing.T) {
	ready := errors.New("db down")
	srv := NewServer(&mockStreamer{}, nil,
		WithReadinessCheck("store", func(context.Context) error { return ready }),
	)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/healthz", nil))
	if rec.Code != gohttp.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/readyz", nil))
	if rec.Code != gohttp.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "store") {
		t.Errorf("readyz = %d %q", rec.Code, rec.Body.String())
	}

	ready = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/readyz", nil))
	if rec.Code != gohttp.StatusOK {
		t.Errorf("readyz after recovery = %d", rec.Code)
	}
}

func TestServerMetricsAndMiddleware(t *testing.T) {
	var order []string
	mw := func(name string) func(gohttp.Handler) gohttp.Handler {
		return func(next gohttp.Handler) gohttp.Handler {
			return gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	metrics := gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		w.Write([]byte("arena_requests_total 1\n"))
	})

	srv := NewServer(&mockStreamer{}, nil,
		WithMetricsHandler(metrics),
		WithHTTPMiddleware(mw("outer"), mw("inner")),
	)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "arena_requests_total") {
		t.Errorf("metrics body = %q", rec.Body.String())
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("middleware order = %v", order)
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	srv := NewServer(&mockStreamer{}, nil,
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithShutdownTimeout(10*time.Second),
		WithReadTimeout(20*time.Second),
	)

	if srv.httpServer.ReadTimeout != 20*time.Second {
		t.Errorf("read timeout = %v, want 20s", srv.httpServer.ReadTimeout)
	}
	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.MaxBodySize, 1024)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
}

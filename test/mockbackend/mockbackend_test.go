package mockbackend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/llmarena/arena/pkg/provider"
	"github.com/llmarena/arena/pkg/provider/openaicompat"
)

func collect(t *testing.T, srv *httptest.Server, model string, msgs ...string) (text, reasoning string, err error) {
	t.Helper()
	client := openaicompat.NewClient(srv.URL, "", 5*time.Second)
	defer client.Close()

	req := &provider.Request{Model: model}
	for _, m := range msgs {
		req.Messages = append(req.Messages, provider.Message{Role: "user", Content: m})
	}
	ch, err := client.Stream(context.Background(), req)
	if err != nil {
		return "", "", err
	}
	var tb, rb strings.Builder
	for ev := range ch {
		switch ev.Type {
		case provider.EventTextDelta:
			tb.WriteString(ev.Delta)
		case provider.EventReasoningDelta:
			rb.WriteString(ev.Delta)
		case provider.EventError:
			err = ev.Err
		}
	}
	return tb.String(), rb.String(), err
}

func TestStandardStream(t *testing.T) {
	b := New()
	srv := httptest.NewServer(b)
	defer srv.Close()

	text, reasoning, err := collect(t, srv, "mock-standard", "first", "hello there")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if want := Answer("mock-standard", []string{"first", "hello there"}); text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	if reasoning != "" {
		t.Errorf("unexpected reasoning %q", reasoning)
	}
	if b.Requests() != 1 {
		t.Errorf("requests = %d, want 1", b.Requests())
	}
}

func TestMarkupModes(t *testing.T) {
	srv := httptest.NewServer(New())
	defer srv.Close()

	tests := []struct {
		model   string
		contain []string
	}{
		{"mock-harmony", []string{"<|channel|>analysis<|message|>", "<|channel|>final<|message|>", "<|return|>"}},
		{"mock-thinking", []string{"<think>", "</think>"}},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			text, _, err := collect(t, srv, tt.model, "q")
			if err != nil {
				t.Fatalf("stream: %v", err)
			}
			for _, s := range tt.contain {
				if !strings.Contains(text, s) {
					t.Errorf("text %q missing %q", text, s)
				}
			}
			if !strings.Contains(text, Reasoning(tt.model)) {
				t.Errorf("text %q missing reasoning", text)
			}
		})
	}
}

func TestReasoningField(t *testing.T) {
	srv := httptest.NewServer(New())
	defer srv.Close()

	text, reasoning, err := collect(t, srv, "mock-reasoning", "q")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if reasoning != Reasoning("mock-reasoning") {
		t.Errorf("reasoning = %q", reasoning)
	}
	if text != Answer("mock-reasoning", []string{"q"}) {
		t.Errorf("text = %q", text)
	}
}

func TestFailingModel(t *testing.T) {
	srv := httptest.NewServer(New())
	defer srv.Close()

	if _, _, err := collect(t, srv, "mock-fail", "q"); err == nil {
		t.Fatal("expected error from failing model")
	}
}

func TestModelsAndHealth(t *testing.T) {
	srv := httptest.NewServer(New(WithModels("a", "b")))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/models")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("models status = %d", resp.StatusCode)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", health.StatusCode)
	}
}

func TestSplitKeepsRunes(t *testing.T) {
	text := "héllo wörld 你好世界"
	parts := split(text)
	if strings.Join(parts, "") != text {
		t.Fatalf("rejoined text differs: %q", parts)
	}
	for _, p := range parts {
		if !isRuneStart(p[0]) {
			t.Errorf("part %q starts mid-rune", p)
		}
	}
}

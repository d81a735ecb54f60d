package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/llmarena/arena/pkg/provider"
)

// collectEvents runs ParseSSEStream and returns all events.
func collectEvents(t *testing.T, body io.Reader) []provider.Event {
	t.Helper()
	ch := make(chan provider.Event, 64)

	go func() {
		defer close(ch)
		ParseSSEStream(context.Background(), body, ch)
	}()

	var events []provider.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func assertEvent(t *testing.T, ev provider.Event, wantType provider.EventType, wantDelta string) {
	t.Helper()
	if ev.Type != wantType {
		t.Errorf("event type = %s, want %s", ev.Type, wantType)
	}
	if ev.Delta != wantDelta {
		t.Errorf("event delta = %q, want %q", ev.Delta, wantDelta)
	}
}

func TestParseSSEStream_TextDeltas(t *testing.T) {
	sseData := `data: {"id":"c1","object":"chat.completion.chunk","model":"m","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","model":"m","choices":[{"index":0,"delta":{"content":"Hel"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","model":"m","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","model":"m","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]
`
	events := collectEvents(t, strings.NewReader(sseData))

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	assertEvent(t, events[0], provider.EventTextDelta, "Hel")
	assertEvent(t, events[1], provider.EventTextDelta, "lo")
	assertEvent(t, events[2], provider.EventDone, "")
	if events[2].FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", events[2].FinishReason)
	}
}

func TestParseSSEStream_ReasoningContent(t *testing.T) {
	sseData := `data: {"choices":[{"delta":{"reasoning_content":"thinking"},"finish_reason":null}]}
data: {"choices":[{"delta":{"reasoning":"more","content":"answer"},"finish_reason":null}]}
data: [DONE]
`
	events := collectEvents(t, strings.NewReader(sseData))

	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	assertEvent(t, events[0], provider.EventReasoningDelta, "thinking")
	assertEvent(t, events[1], provider.EventReasoningDelta, "more")
	assertEvent(t, events[2], provider.EventTextDelta, "answer")
	assertEvent(t, events[3], provider.EventDone, "")
}

func TestParseSSEStream_MalformedChunkSkipped(t *testing.T) {
	sseData := `data: {not json}
data: {"choices":[{"delta":{"content":"ok"}}]}
data: [DONE]
`
	events := collectEvents(t, strings.NewReader(sseData))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	assertEvent(t, events[0], provider.EventTextDelta, "ok")
}

func TestParseSSEStream_MalformedChunkLogIsValidUTF8(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(orig)

	// 67 three-byte runes put the 200 byte cut inside a rune.
	bad := "{" + strings.Repeat("對", 100)
	events := collectEvents(t, strings.NewReader("data: "+bad+"\ndata: [DONE]\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	var rec struct {
		Msg  string `json:"msg"`
		Data string `json:"data"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("log line: %v: %q", err, buf.String())
	}
	if rec.Msg != "skipping malformed SSE chunk" {
		t.Errorf("msg = %q", rec.Msg)
	}
	if !utf8.ValidString(rec.Data) || strings.ContainsRune(rec.Data, utf8.RuneError) {
		t.Errorf("logged data split a rune: %q", rec.Data)
	}
	if !strings.HasSuffix(rec.Data, "...") {
		t.Errorf("logged data not truncated: %q", rec.Data)
	}
}

func TestParseSSEStream_NoSpaceAfterColonAndComments(t *testing.T) {
	sseData := `: keep-alive
event: message
data:{"choices":[{"delta":{"content":"x"}}]}

data:[DONE]
`
	events := collectEvents(t, strings.NewReader(sseData))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	assertEvent(t, events[0], provider.EventTextDelta, "x")
	assertEvent(t, events[1], provider.EventDone, "")
}

func TestParseSSEStream_EOFWithoutDone(t *testing.T) {
	sseData := `data: {"choices":[{"delta":{"content":"tail"}}]}
`
	events := collectEvents(t, strings.NewReader(sseData))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	assertEvent(t, events[1], provider.EventDone, "")
}

func TestParseSSEStream_SingleDoneAfterFinishReason(t *testing.T) {
	sseData := `data: {"choices":[{"delta":{},"finish_reason":"length"}]}
data: [DONE]
`
	events := collectEvents(t, strings.NewReader(sseData))
	if len(events) != 1 {
		t.Fatalf("expected exactly one done event, got %d: %+v", len(events), events)
	}
}

type failingReader struct{ data string }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, errors.New("connection reset")
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestParseSSEStream_ReadError(t *testing.T) {
	events := collectEvents(t, &failingReader{data: "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n"})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[1].Type != provider.EventError || events[1].Err == nil {
		t.Errorf("last event = %+v, want error", events[1])
	}
}

func TestParseSSEStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan provider.Event) // unbuffered, nobody reads
	finished := make(chan struct{})
	go func() {
		ParseSSEStream(ctx, strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n"), ch)
		close(finished)
	}()
	<-finished
}

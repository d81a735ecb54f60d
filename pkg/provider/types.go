package provider

import "context"

// Request is the backend-facing completion request: the conversation of one
// side of a thread, oldest message first.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Message is one conversation turn in provider format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EventType classifies a streaming event from the backend.
type EventType int

const (
	EventTextDelta      EventType = iota // Incremental text content
	EventReasoningDelta                  // Incremental reasoning content
	EventDone                            // Stream finished
	EventError                           // Stream error
)

func (t EventType) String() string {
	switch t {
	case EventTextDelta:
		return "text_delta"
	case EventReasoningDelta:
		return "reasoning_delta"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single streaming event from the backend.
type Event struct {
	Type EventType

	// Delta contains incremental text for delta events.
	Delta string

	// FinishReason is set on EventDone when the backend reported one.
	FinishReason string

	// Err is populated for EventError.
	Err error
}

// Send delivers ev on ch unless ctx is cancelled first. It reports whether
// the event was delivered. Adapters use it so a consumer that stops reading
// never leaves the producing goroutine blocked.
func Send(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

package api

import "encoding/json"

// EventType identifies one line of the multiplexed response body.
type EventType string

const (
	// EventHistory replays both logs before any new content. It is sent at
	// most once per run and only when a log is non-empty.
	EventHistory EventType = "history"
	EventModel1  EventType = "model1"
	EventModel2  EventType = "model2"
	// EventError reports a side failure. Only written when error frames are
	// enabled in the engine configuration.
	EventError EventType = "error"
)

// OutboundEvent is one newline-delimited JSON object of a chat response.
type OutboundEvent struct {
	Type          EventType
	Content       string
	MessagesLeft  []Message
	MessagesRight []Message
	Side          EventType
	Message       string
}

// HistoryEvent builds the replay event for a thread.
func HistoryEvent(t *Thread) OutboundEvent {
	return OutboundEvent{
		Type:          EventHistory,
		MessagesLeft:  t.Side1Messages,
		MessagesRight: t.Side2Messages,
	}
}

// ContentEvent builds a content event for one side.
func ContentEvent(s Side, text string) OutboundEvent {
	return OutboundEvent{Type: s.EventType(), Content: text}
}

// ErrorEvent builds an error frame for one side.
func ErrorEvent(s Side, message string) OutboundEvent {
	return OutboundEvent{Type: EventError, Side: s.EventType(), Message: message}
}

// MarshalJSON emits only the fields that belong to the event's type. History
// logs are always arrays, never null.
func (e OutboundEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventHistory:
		left, right := e.MessagesLeft, e.MessagesRight
		if left == nil {
			left = []Message{}
		}
		if right == nil {
			right = []Message{}
		}
		return json.Marshal(struct {
			Type          EventType `json:"type"`
			MessagesLeft  []Message `json:"messagesLeft"`
			MessagesRight []Message `json:"messagesRight"`
		}{e.Type, left, right})
	case EventError:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Side    EventType `json:"side"`
			Message string    `json:"message"`
		}{e.Type, e.Side, e.Message})
	default:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	}
}

// UnmarshalJSON decodes any of the event shapes.
func (e *OutboundEvent) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type          EventType `json:"type"`
		Content       string    `json:"content"`
		MessagesLeft  []Message `json:"messagesLeft"`
		MessagesRight []Message `json:"messagesRight"`
		Side          EventType `json:"side"`
		Message       string    `json:"message"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = OutboundEvent(wire)
	return nil
}

// IsContent reports whether the event carries model output.
func (e OutboundEvent) IsContent() bool {
	return e.Type == EventModel1 || e.Type == EventModel2
}

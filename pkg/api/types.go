package api

import (
	"slices"
	"time"
)

// Role identifies the author of a message in a side's log.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a per-side conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Side names one of the two columns of a thread.
type Side int

const (
	Side1 Side = iota
	Side2
)

// EventType returns the outbound event type that carries this side's content.
func (s Side) EventType() EventType {
	if s == Side2 {
		return EventModel2
	}
	return EventModel1
}

// String returns "model1" or "model2".
func (s Side) String() string {
	return string(s.EventType())
}

// InitialContext records where the first question of a thread came from.
type InitialContext struct {
	Question string         `json:"question"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Thread is the persisted pairing of one conversation with two backends.
// SelectedModels[0] answers on Side1 and SelectedModels[1] on Side2. Once
// SelectedModels is non-empty it never changes.
type Thread struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"ownerId"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Category       string          `json:"category"`
	InitialContext *InitialContext `json:"initialContext,omitempty"`
	SelectedModels []string        `json:"selectedModels"`
	Side1Messages  []Message       `json:"side1Messages"`
	Side2Messages  []Message       `json:"side2Messages"`
}

// SideOf reports which side the given model answers on. The boolean is false
// when the model is not part of the thread's assignment.
func (t *Thread) SideOf(modelID string) (Side, bool) {
	switch slices.Index(t.SelectedModels, modelID) {
	case 0:
		return Side1, true
	case 1:
		return Side2, true
	default:
		return 0, false
	}
}

// Messages returns the log kept for the given side.
func (t *Thread) Messages(s Side) []Message {
	if s == Side2 {
		return t.Side2Messages
	}
	return t.Side1Messages
}

// Append adds a message to the log of the given side.
func (t *Thread) Append(s Side, msg Message) {
	if s == Side2 {
		t.Side2Messages = append(t.Side2Messages, msg)
		return
	}
	t.Side1Messages = append(t.Side1Messages, msg)
}

// HasHistory reports whether either side has at least one message.
func (t *Thread) HasHistory() bool {
	return len(t.Side1Messages) > 0 || len(t.Side2Messages) > 0
}

// Assigned reports whether models have been selected for the thread.
func (t *Thread) Assigned() bool {
	return len(t.SelectedModels) > 0
}

// Clone returns a deep copy of the thread so callers can mutate it freely.
func (t *Thread) Clone() *Thread {
	c := *t
	c.SelectedModels = slices.Clone(t.SelectedModels)
	c.Side1Messages = slices.Clone(t.Side1Messages)
	c.Side2Messages = slices.Clone(t.Side2Messages)
	if t.InitialContext != nil {
		ic := *t.InitialContext
		c.InitialContext = &ic
	}
	return &c
}

// ResponseFormat selects the processor that interprets a backend's stream.
type ResponseFormat string

const (
	FormatStandard ResponseFormat = "standard"
	FormatHarmony  ResponseFormat = "harmony"
	FormatThinking ResponseFormat = "thinking"
	// FormatBedrock selects the AWS Bedrock ConverseStream event protocol.
	FormatBedrock ResponseFormat = "bedrock"
)

// FormatOptions tune how a processor surfaces output.
type FormatOptions struct {
	ShowReasoning bool     `json:"showReasoning,omitempty" yaml:"show_reasoning"`
	ChannelFilter []string `json:"channelFilter,omitempty" yaml:"channel_filter"`
}

// ModelConfig describes one backend in the model directory.
type ModelConfig struct {
	Model          string         `json:"model" yaml:"model"`
	BaseURL        string         `json:"baseURL" yaml:"base_url"`
	APIKey         string         `json:"apiKey" yaml:"api_key"`
	ResponseFormat ResponseFormat `json:"responseFormat,omitempty" yaml:"response_format"`
	FormatOptions  *FormatOptions `json:"formatOptions,omitempty" yaml:"format_options"`
	Enabled        *bool          `json:"enabled,omitempty" yaml:"enabled"`
}

// IsEnabled treats a missing flag as enabled.
func (m ModelConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// ChunkKind distinguishes user-visible content from model reasoning.
type ChunkKind string

const (
	ChunkContent   ChunkKind = "content"
	ChunkReasoning ChunkKind = "reasoning"
)

// Channel is the logical output channel a chunk was produced on.
type Channel string

const (
	ChannelFinal      Channel = "final"
	ChannelAnalysis   Channel = "analysis"
	ChannelCommentary Channel = "commentary"
)

// Chunk is the canonical unit every processor yields regardless of the
// backend's wire format.
type Chunk struct {
	Kind     ChunkKind         `json:"type"`
	Text     string            `json:"content"`
	Channel  Channel           `json:"channel,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ContentChunk builds a final-channel content chunk.
func ContentChunk(text string) Chunk {
	return Chunk{Kind: ChunkContent, Text: text, Channel: ChannelFinal}
}

// ReasoningChunk builds an analysis-channel reasoning chunk.
func ReasoningChunk(text string) Chunk {
	return Chunk{Kind: ChunkReasoning, Text: text, Channel: ChannelAnalysis}
}

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	ThreadID       string          `json:"threadId"`
	Message        string          `json:"message"`
	Category       string          `json:"category,omitempty"`
	InitialContext *InitialContext `json:"initialContext,omitempty"`
}

// ThreadRequest is the body of calls that only address a thread.
type ThreadRequest struct {
	ThreadID string `json:"threadId"`
}

// CreateThreadRequest is the body of a call that opens an empty thread
// ahead of its first message.
type CreateThreadRequest struct {
	Category       string `json:"category,omitempty"`
	InitialContext *struct {
		InitialQuestion string         `json:"initialQuestion"`
		Source          string         `json:"source"`
		Metadata        map[string]any `json:"metadata,omitempty"`
	} `json:"initialContext,omitempty"`
}

// Context converts the request's initial context, defaulting the source
// to "unknown".
func (r *CreateThreadRequest) Context() *InitialContext {
	ic := &InitialContext{Source: "unknown", Metadata: map[string]any{}}
	if r.InitialContext == nil {
		return ic
	}
	ic.Question = r.InitialContext.InitialQuestion
	if r.InitialContext.Source != "" {
		ic.Source = r.InitialContext.Source
	}
	if r.InitialContext.Metadata != nil {
		ic.Metadata = r.InitialContext.Metadata
	}
	return ic
}

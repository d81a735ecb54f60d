package api

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestThreadSideOf(t *testing.T) {
	th := &Thread{SelectedModels: []string{"gpt-x", "llama-y"}}

	tests := []struct {
		model  string
		want   Side
		wantOK bool
	}{
		{"gpt-x", Side1, true},
		{"llama-y", Side2, true},
		{"other", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, ok := th.SideOf(tt.model)
			if ok != tt.wantOK {
				t.Fatalf("SideOf(%q) ok = %v, want %v", tt.model, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("SideOf(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestThreadSideOfThirdModelRejected(t *testing.T) {
	th := &Thread{SelectedModels: []string{"a", "b", "c"}}
	if _, ok := th.SideOf("c"); ok {
		t.Error("a model past index 1 must not resolve to a side")
	}
}

func TestThreadAppendAndHistory(t *testing.T) {
	th := &Thread{SelectedModels: []string{"a", "b"}}
	if th.HasHistory() {
		t.Fatal("new thread should have no history")
	}

	th.Append(Side2, Message{Role: RoleUser, Content: "hi"})
	if !th.HasHistory() {
		t.Fatal("HasHistory() = false after append")
	}
	if len(th.Messages(Side1)) != 0 {
		t.Errorf("side1 len = %d, want 0", len(th.Messages(Side1)))
	}
	if got := th.Messages(Side2); len(got) != 1 || got[0].Content != "hi" {
		t.Errorf("side2 = %+v", got)
	}
}

func TestThreadClone(t *testing.T) {
	th := &Thread{
		SelectedModels: []string{"a", "b"},
		Side1Messages:  []Message{{Role: RoleUser, Content: "q"}},
		InitialContext: &InitialContext{Question: "q", Source: "unknown"},
	}
	c := th.Clone()
	c.SelectedModels[0] = "z"
	c.Side1Messages[0].Content = "changed"
	c.InitialContext.Source = "changed"

	if th.SelectedModels[0] != "a" || th.Side1Messages[0].Content != "q" || th.InitialContext.Source != "unknown" {
		t.Errorf("Clone shares state with original: %+v", th)
	}
}

func TestSideEventType(t *testing.T) {
	if Side1.EventType() != EventModel1 {
		t.Errorf("Side1 = %q", Side1.EventType())
	}
	if Side2.String() != "model2" {
		t.Errorf("Side2 = %q", Side2.String())
	}
}

func TestModelConfigIsEnabled(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name    string
		enabled *bool
		want    bool
	}{
		{"absent", nil, true},
		{"true", &yes, true},
		{"false", &no, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (ModelConfig{Model: "m", Enabled: tt.enabled}).IsEnabled(); got != tt.want {
				t.Errorf("IsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModelConfigJSONFieldNames(t *testing.T) {
	raw := `{"model":"m","baseURL":"http://x","apiKey":"k","responseFormat":"harmony","formatOptions":{"showReasoning":true,"channelFilter":["final"]}}`
	var cfg ModelConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.BaseURL != "http://x" || cfg.APIKey != "k" || cfg.ResponseFormat != FormatHarmony {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.FormatOptions == nil || !cfg.FormatOptions.ShowReasoning || cfg.FormatOptions.ChannelFilter[0] != "final" {
		t.Errorf("format options = %+v", cfg.FormatOptions)
	}
}

func TestChunkConstructors(t *testing.T) {
	c := ContentChunk("a")
	if c.Kind != ChunkContent || c.Channel != ChannelFinal {
		t.Errorf("ContentChunk = %+v", c)
	}
	r := ReasoningChunk("b")
	if r.Kind != ChunkReasoning || r.Channel != ChannelAnalysis {
		t.Errorf("ReasoningChunk = %+v", r)
	}
}

func TestOutboundEventMarshal(t *testing.T) {
	tests := []struct {
		name string
		ev   OutboundEvent
		want string
	}{
		{
			"content",
			ContentEvent(Side1, "Hel"),
			`{"type":"model1","content":"Hel"}`,
		},
		{
			"empty content keeps field",
			ContentEvent(Side2, ""),
			`{"type":"model2","content":""}`,
		},
		{
			"history with one empty side",
			HistoryEvent(&Thread{Side1Messages: []Message{{Role: RoleUser, Content: "q"}}}),
			`{"type":"history","messagesLeft":[{"role":"user","content":"q"}],"messagesRight":[]}`,
		},
		{
			"error frame",
			ErrorEvent(Side2, "boom"),
			`{"type":"error","side":"model2","message":"boom"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("got %s\nwant %s", b, tt.want)
			}
			if strings.Contains(string(b), "\n") {
				t.Error("encoded event must be a single line")
			}
		})
	}
}

func TestOutboundEventUnmarshal(t *testing.T) {
	var ev OutboundEvent
	if err := json.Unmarshal([]byte(`{"type":"history","messagesLeft":[],"messagesRight":[{"role":"assistant","content":"x"}]}`), &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.Type != EventHistory || len(ev.MessagesRight) != 1 || ev.MessagesRight[0].Role != RoleAssistant {
		t.Errorf("ev = %+v", ev)
	}
	if ev.IsContent() {
		t.Error("history event reported as content")
	}
}

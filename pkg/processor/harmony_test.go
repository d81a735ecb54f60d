package processor

import (
	"testing"

	"github.com/llmarena/arena/pkg/api"
)

func decodeAll(d decoder, deltas ...string) []api.Chunk {
	var out []api.Chunk
	for _, s := range deltas {
		out = append(out, d.Feed(s)...)
	}
	return append(out, d.Flush()...)
}

func TestHarmonyFinalAndAnalysis(t *testing.T) {
	raw := "<|start|>assistant<|channel|>final<|message|>Hi<|start|>assistant<|channel|>analysis<|message|>think"
	got := decodeAll(&harmonyDecoder{}, raw)

	if len(got) != 2 {
		t.Fatalf("got %d chunks: %+v", len(got), got)
	}
	if !sameChunk(got[0], api.ContentChunk("Hi")) {
		t.Errorf("chunk[0] = %+v", got[0])
	}
	if got[1].Kind != api.ChunkReasoning || got[1].Channel != api.ChannelAnalysis || got[1].Text != "think" {
		t.Errorf("chunk[1] = %+v", got[1])
	}
}

func TestHarmonySplitAcrossDeltas(t *testing.T) {
	raw := "<|start|>assistant<|channel|>analysis<|message|>let me see<|end|>" +
		"<|start|>assistant<|channel|>final<|message|>The answer is 4.<|return|>"

	// Feed one byte at a time.
	d := &harmonyDecoder{}
	var got []api.Chunk
	for i := range len(raw) {
		got = append(got, d.Feed(raw[i:i+1])...)
	}
	got = append(got, d.Flush()...)

	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Kind != api.ChunkReasoning || got[0].Text != "let me see" {
		t.Errorf("chunk[0] = %+v", got[0])
	}
	if got[1].Kind != api.ChunkContent || got[1].Text != "The answer is 4." {
		t.Errorf("chunk[1] = %+v", got[1])
	}
}

func TestHarmonyGroupEmittedBeforeStreamEnds(t *testing.T) {
	d := &harmonyDecoder{}
	if out := d.Feed("<|start|>assistant<|channel|>final<|message|>one"); len(out) != 0 {
		t.Fatalf("unterminated group emitted early: %+v", out)
	}
	out := d.Feed("<|end|><|start|>assistant")
	if len(out) != 1 || out[0].Text != "one" {
		t.Errorf("out = %+v", out)
	}
}

func TestHarmonyCases(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []api.Chunk
	}{
		{
			name: "commentary is reasoning",
			in:   "<|start|>assistant<|channel|>commentary<|message|>calling tool<|call|>",
			want: []api.Chunk{{Kind: api.ChunkReasoning, Text: "calling tool", Channel: api.ChannelCommentary}},
		},
		{
			name: "non-assistant role dropped",
			in:   "<|start|>system<|message|>rules<|end|><|start|>assistant<|channel|>final<|message|>ok<|end|>",
			want: []api.Chunk{api.ContentChunk("ok")},
		},
		{
			name: "header without start belongs to assistant",
			in:   "<|channel|>final<|message|>direct<|end|>",
			want: []api.Chunk{api.ContentChunk("direct")},
		},
		{
			name: "missing channel is final",
			in:   "<|start|>assistant<|message|>plain<|end|>",
			want: []api.Chunk{api.ContentChunk("plain")},
		},
		{
			name: "empty group skipped",
			in:   "<|start|>assistant<|channel|>final<|message|>   <|end|>",
			want: nil,
		},
		{
			name: "plain text flushed as content",
			in:   "  no markup here ",
			want: []api.Chunk{api.ContentChunk("no markup here")},
		},
		{
			name: "incomplete header flushed as content",
			in:   "<|start|>assistant<|channel|>fin",
			want: []api.Chunk{api.ContentChunk("<|start|>assistant<|channel|>fin")},
		},
		{
			name: "unterminated marker flushed as content",
			in:   "answer is 3 <|",
			want: []api.Chunk{api.ContentChunk("answer is 3 <|")},
		},
		{
			name: "truncated end token trimmed",
			in:   "<|start|>assistant<|channel|>final<|message|>tail<|en",
			want: []api.Chunk{api.ContentChunk("tail")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeAll(&harmonyDecoder{}, tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i].Kind != tt.want[i].Kind || got[i].Text != tt.want[i].Text || got[i].Channel != tt.want[i].Channel {
					t.Errorf("chunk[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

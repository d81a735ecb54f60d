package processor

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync/atomic"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/debug"
	"github.com/llmarena/arena/pkg/provider"
	"github.com/llmarena/arena/pkg/provider/bedrock"
)

// ErrStreamConsumed is yielded when a sequence is ranged over a second time.
var ErrStreamConsumed = errors.New("processor: stream already consumed")

// Processor converts one completion stream into canonical chunks.
type Processor interface {
	// Format returns the response format this processor handles.
	Format() api.ResponseFormat

	// ProcessStream starts a completion for model over messages. Nothing
	// happens until the sequence is ranged over. A failure is yielded once
	// as a non-nil error and ends the sequence. The sequence can be
	// consumed only once.
	ProcessStream(ctx context.Context, messages []api.Message, model api.ModelConfig) iter.Seq2[api.Chunk, error]
}

// decoder incrementally parses text deltas into chunks.
type decoder interface {
	Feed(delta string) []api.Chunk
	Flush() []api.Chunk
}

// streamProcessor is the shared skeleton: dial, stream, decode, filter.
type streamProcessor struct {
	format     api.ResponseFormat
	dialer     Dialer
	newDecoder func() decoder
	// reasoningMeta is attached to chunks built from provider reasoning deltas.
	reasoningMeta map[string]string
}

func (p *streamProcessor) Format() api.ResponseFormat { return p.format }

func (p *streamProcessor) ProcessStream(ctx context.Context, messages []api.Message, model api.ModelConfig) iter.Seq2[api.Chunk, error] {
	var used atomic.Bool
	return func(yield func(api.Chunk, error) bool) {
		if used.Swap(true) {
			yield(api.Chunk{}, ErrStreamConsumed)
			return
		}
		p.run(ctx, messages, model, yield)
	}
}

func (p *streamProcessor) run(parent context.Context, messages []api.Message, model api.ModelConfig, yield func(api.Chunk, error) bool) {
	prov, err := p.dialer.Dial(model)
	if err != nil {
		yield(api.Chunk{}, err)
		return
	}

	// Cancelling on return stops the provider goroutine when the consumer
	// breaks out early.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	events, err := prov.Stream(ctx, &provider.Request{
		Model:    model.Model,
		Messages: toProviderMessages(messages),
	})
	if err != nil {
		yield(api.Chunk{}, err)
		return
	}

	filter := channelFilter(model)
	emit := func(chunks []api.Chunk) bool {
		for _, c := range chunks {
			if filter != nil && !filter(c) {
				debug.Log("processors", "chunk dropped by channel filter", "model", model.Model, "channel", c.Channel)
				continue
			}
			if !yield(c, nil) {
				return false
			}
		}
		return true
	}

	dec := p.newDecoder()
	for ev := range events {
		switch ev.Type {
		case provider.EventTextDelta:
			if !emit(dec.Feed(ev.Delta)) {
				return
			}
		case provider.EventReasoningDelta:
			if ev.Delta == "" {
				continue
			}
			c := api.ReasoningChunk(ev.Delta)
			c.Metadata = p.reasoningMeta
			if !emit([]api.Chunk{c}) {
				return
			}
		case provider.EventError:
			yield(api.Chunk{}, ev.Err)
			return
		case provider.EventDone:
			debug.Log("processors", "stream done", "model", model.Model, "finish_reason", ev.FinishReason)
		}
	}

	// The provider closes its channel silently on cancellation; report it
	// so callers know the output is partial.
	if err := parent.Err(); err != nil {
		yield(api.Chunk{}, err)
		return
	}

	emit(dec.Flush())
}

func toProviderMessages(msgs []api.Message) []provider.Message {
	out := make([]provider.Message, len(msgs))
	for i, m := range msgs {
		out[i] = provider.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

// channelFilter returns nil when the model does not restrict channels.
func channelFilter(model api.ModelConfig) func(api.Chunk) bool {
	if model.FormatOptions == nil || len(model.FormatOptions.ChannelFilter) == 0 {
		return nil
	}
	allowed := model.FormatOptions.ChannelFilter
	return func(c api.Chunk) bool {
		return slices.Contains(allowed, string(c.Channel))
	}
}

// FormatOf returns the response format a model record should be processed
// with. Bedrock-addressed records without an explicit format use the Bedrock
// processor.
func FormatOf(m api.ModelConfig) api.ResponseFormat {
	if m.ResponseFormat != "" {
		return m.ResponseFormat
	}
	if bedrock.IsBedrock(m) {
		return api.FormatBedrock
	}
	return api.FormatStandard
}

// Set holds one processor per supported format.
type Set struct {
	processors map[api.ResponseFormat]Processor
	fallback   Processor
}

// NewSet builds the standard, harmony, thinking and Bedrock processors on
// top of dialer.
func NewSet(dialer Dialer) *Set {
	std := NewStandard(dialer)
	s := &Set{
		processors: make(map[api.ResponseFormat]Processor),
		fallback:   std,
	}
	for _, p := range []Processor{std, NewHarmony(dialer), NewThinking(dialer), NewBedrock(dialer)} {
		s.processors[p.Format()] = p
	}
	return s
}

// Select returns the processor for format. Empty or unknown formats get the
// standard processor.
func (s *Set) Select(format api.ResponseFormat) Processor {
	if p, ok := s.processors[format]; ok {
		return p
	}
	return s.fallback
}

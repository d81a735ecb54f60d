package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/debug"
	"github.com/llmarena/arena/pkg/provider"
)

// maxLineSize bounds a single SSE line. Reasoning models can emit large
// chunks, so the scanner default of 64KB is raised.
const maxLineSize = 1024 * 1024

// ParseSSEStream reads Chat Completions SSE chunks from the given reader,
// translates each chunk to provider events, and sends them on ch.
// The channel is NOT closed by this function; the caller is responsible
// for closing it.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. Context cancellation stops
// reading immediately.
func ParseSSEStream(ctx context.Context, body io.Reader, ch chan<- provider.Event) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	done := false
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// Lines without a data field are ignored (blank separators,
		// ":" comments, event/id fields).
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimPrefix(payload, " ")

		if payload == "[DONE]" {
			if !done {
				provider.Send(ctx, ch, provider.Event{Type: provider.EventDone})
			}
			return
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", debug.Truncate(payload, 200),
			)
			continue
		}

		for _, ev := range TranslateChunk(&chunk) {
			if !provider.Send(ctx, ch, ev) {
				return
			}
			if ev.Type == provider.EventDone {
				done = true
			}
		}
	}

	if err := scanner.Err(); err != nil {
		// Context cancellation is not an error from our perspective.
		if ctx.Err() != nil {
			return
		}
		provider.Send(ctx, ch, provider.Event{
			Type: provider.EventError,
			Err:  api.NewProviderError("SSE stream read error: " + err.Error()),
		})
		return
	}

	// Body ended without [DONE]. Some servers close right after the
	// finish_reason chunk; treat that as a normal end.
	if !done {
		provider.Send(ctx, ch, provider.Event{Type: provider.EventDone})
	}
}

// TranslateChunk converts a single ChatCompletionChunk into provider events.
// Reasoning is reported before text when a chunk carries both.
func TranslateChunk(chunk *ChatCompletionChunk) []provider.Event {
	if len(chunk.Choices) == 0 {
		return nil
	}

	choice := chunk.Choices[0]
	delta := choice.Delta

	var events []provider.Event

	reasoning := delta.ReasoningContent
	if reasoning == nil {
		reasoning = delta.Reasoning
	}
	if reasoning != nil && *reasoning != "" {
		events = append(events, provider.Event{
			Type:  provider.EventReasoningDelta,
			Delta: *reasoning,
		})
	}

	if delta.Content != nil && *delta.Content != "" {
		events = append(events, provider.Event{
			Type:  provider.EventTextDelta,
			Delta: *delta.Content,
		})
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		events = append(events, provider.Event{
			Type:         provider.EventDone,
			FinishReason: *choice.FinishReason,
		})
	}

	return events
}

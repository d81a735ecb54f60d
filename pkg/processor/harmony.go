package processor

import (
	"regexp"
	"strings"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/debug"
)

// Harmony markup tokens.
const (
	tokStart   = "<|start|>"
	tokMessage = "<|message|>"
	tokEnd     = "<|end|>"
	tokReturn  = "<|return|>"
	tokCall    = "<|call|>"
	tokMarker  = "<|"
)

var (
	harmonyRoleRe    = regexp.MustCompile(`<\|start\|>(\w+)`)
	harmonyChannelRe = regexp.MustCompile(`<\|channel\|>(\w+)`)
)

// NewHarmony returns the processor for backends that stream harmony markup:
//
//	<|start|>assistant<|channel|>analysis<|message|>...<|end|>
//
// Only assistant groups are surfaced. analysis and commentary groups become
// reasoning; every other channel becomes final content.
func NewHarmony(dialer Dialer) Processor {
	return &streamProcessor{
		format:     api.FormatHarmony,
		dialer:     dialer,
		newDecoder: func() decoder { return &harmonyDecoder{} },
	}
}

// harmonyDecoder buffers raw text and emits each marker group once it is
// terminated by the next <|start|> or by an end token.
type harmonyDecoder struct {
	buf strings.Builder
}

func (d *harmonyDecoder) Feed(delta string) []api.Chunk {
	d.buf.WriteString(delta)
	text := d.buf.String()

	var out []api.Chunk
	for {
		mi := strings.Index(text, tokMessage)
		if mi < 0 {
			break
		}
		bodyStart := mi + len(tokMessage)
		end, next := harmonyTerminator(text[bodyStart:])
		if end < 0 {
			break
		}
		out = appendHarmonyGroup(out, text[:mi], text[bodyStart:bodyStart+end])
		text = text[bodyStart+next:]
	}

	d.buf.Reset()
	d.buf.WriteString(text)
	return out
}

// Flush parses whatever is left as a final unterminated group. Any other
// non-empty remainder, markup or not, is returned as plain content.
func (d *harmonyDecoder) Flush() []api.Chunk {
	text := d.buf.String()
	d.buf.Reset()

	if mi := strings.Index(text, tokMessage); mi >= 0 {
		body := text[mi+len(tokMessage):]
		// Drop a token cut off by the end of the stream ("...<|en").
		if i := strings.LastIndex(body, tokMarker); i >= 0 && !strings.Contains(body[i:], "|>") {
			body = body[:i]
		}
		return appendHarmonyGroup(nil, text[:mi], body)
	}
	if strings.Contains(text, tokMarker) {
		// No message body ever arrived. Pass the tail through rather than
		// losing the model's last output.
		debug.Log("processors", "flushing incomplete harmony header", "text", debug.Truncate(text, 200))
	}
	if s := strings.TrimSpace(text); s != "" {
		return []api.Chunk{api.ContentChunk(s)}
	}
	return nil
}

// harmonyTerminator finds the end of a message body. end is where the body
// stops; next is where parsing resumes. A following <|start|> is kept since
// it opens the next group.
func harmonyTerminator(body string) (end, next int) {
	end = -1
	for _, tok := range []string{tokStart, tokEnd, tokReturn, tokCall} {
		i := strings.Index(body, tok)
		if i < 0 || (end >= 0 && i >= end) {
			continue
		}
		end = i
		next = i
		if tok != tokStart {
			next = i + len(tok)
		}
	}
	return end, next
}

// appendHarmonyGroup classifies one group from its header and body.
// A header without <|start|> belongs to the assistant turn the prompt
// already opened; a header without <|channel|> is final output.
func appendHarmonyGroup(out []api.Chunk, header, body string) []api.Chunk {
	role := "assistant"
	if m := harmonyRoleRe.FindStringSubmatch(header); m != nil {
		role = m[1]
	}
	if role != "assistant" {
		return out
	}

	content := strings.TrimSpace(body)
	if content == "" {
		return out
	}

	channel := "final"
	if m := harmonyChannelRe.FindStringSubmatch(header); m != nil {
		channel = m[1]
	}

	switch channel {
	case "analysis":
		return append(out, api.Chunk{Kind: api.ChunkReasoning, Text: content, Channel: api.ChannelAnalysis})
	case "commentary":
		return append(out, api.Chunk{Kind: api.ChunkReasoning, Text: content, Channel: api.ChannelCommentary})
	default:
		return append(out, api.ContentChunk(content))
	}
}

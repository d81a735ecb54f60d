package processor

import (
	"strings"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/debug"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// NewThinking returns the processor for backends that inline their
// reasoning between <think> and </think>. Text outside the tags streams as
// content; each thinking block is emitted as one reasoning chunk when it
// closes.
func NewThinking(dialer Dialer) Processor {
	return &streamProcessor{
		format:     api.FormatThinking,
		dialer:     dialer,
		newDecoder: func() decoder { return &thinkingDecoder{} },
	}
}

// thinkingDecoder is a two-state machine. A trailing fragment that could
// be the start of a tag is held back until the next delta decides it.
type thinkingDecoder struct {
	inThink bool
	pending string
	thought strings.Builder
}

func (d *thinkingDecoder) Feed(delta string) []api.Chunk {
	text := d.pending + delta
	d.pending = ""

	var out []api.Chunk
	for text != "" {
		if !d.inThink {
			if i := strings.Index(text, thinkOpen); i >= 0 {
				out = appendContent(out, text[:i])
				text = text[i+len(thinkOpen):]
				d.inThink = true
				continue
			}
			keep := partialSuffix(text, thinkOpen)
			out = appendContent(out, text[:len(text)-keep])
			d.pending = text[len(text)-keep:]
			return out
		}

		if i := strings.Index(text, thinkClose); i >= 0 {
			d.thought.WriteString(text[:i])
			if s := strings.TrimSpace(d.thought.String()); s != "" {
				out = append(out, api.ReasoningChunk(s))
			}
			d.thought.Reset()
			text = text[i+len(thinkClose):]
			d.inThink = false
			continue
		}
		keep := partialSuffix(text, thinkClose)
		d.thought.WriteString(text[:len(text)-keep])
		d.pending = text[len(text)-keep:]
		return out
	}
	return out
}

// Flush drops an unterminated thinking block and releases held-back text.
func (d *thinkingDecoder) Flush() []api.Chunk {
	if d.inThink {
		debug.Log("processors", "dropping unterminated thinking block", "bytes", d.thought.Len()+len(d.pending))
		d.thought.Reset()
		d.pending = ""
		return nil
	}
	rest := d.pending
	d.pending = ""
	return appendContent(nil, rest)
}

func appendContent(out []api.Chunk, s string) []api.Chunk {
	if s == "" {
		return out
	}
	return append(out, api.ContentChunk(s))
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialSuffix(s, tag string) int {
	maxLen := min(len(s), len(tag)-1)
	for n := maxLen; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}

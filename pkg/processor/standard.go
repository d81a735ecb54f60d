package processor

import "github.com/llmarena/arena/pkg/api"

// NewStandard returns the processor for backends that stream plain text
// deltas. Each non-empty delta becomes one final-channel content chunk.
func NewStandard(dialer Dialer) Processor {
	return &streamProcessor{
		format:     api.FormatStandard,
		dialer:     dialer,
		newDecoder: func() decoder { return plainDecoder{} },
	}
}

// NewBedrock returns the processor for the Bedrock ConverseStream protocol.
// The Bedrock adapter already separates reasoning from text, so text is
// passed through and reasoning chunks are tagged with their source.
func NewBedrock(dialer Dialer) Processor {
	return &streamProcessor{
		format:        api.FormatBedrock,
		dialer:        dialer,
		newDecoder:    func() decoder { return plainDecoder{} },
		reasoningMeta: map[string]string{"source": "bedrock_reasoning"},
	}
}

type plainDecoder struct{}

func (plainDecoder) Feed(delta string) []api.Chunk {
	if delta == "" {
		return nil
	}
	return []api.Chunk{api.ContentChunk(delta)}
}

func (plainDecoder) Flush() []api.Chunk { return nil }

package bedrock

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/llmarena/arena/pkg/provider"
)

// buildMessages converts a provider conversation into Converse messages.
// Converse requires alternating roles and non-empty text blocks, so
// consecutive turns of the same role are merged and empty turns dropped.
func buildMessages(msgs []provider.Message) []types.Message {
	var out []types.Message
	var texts []string
	var role types.ConversationRole

	flush := func() {
		if len(texts) == 0 {
			return
		}
		out = append(out, types.Message{
			Role: role,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: strings.Join(texts, "\n\n")},
			},
		})
		texts = nil
	}

	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		r := types.ConversationRoleUser
		if m.Role == "assistant" {
			r = types.ConversationRoleAssistant
		}
		if r != role {
			flush()
			role = r
		}
		texts = append(texts, m.Content)
	}
	flush()
	return out
}

// translateEvent maps one ConverseStream event to provider events.
// Reasoning text becomes a reasoning delta and text becomes a text delta.
// Other events (block start/stop, metadata, redacted reasoning) carry no
// output and are dropped.
func translateEvent(ev types.ConverseStreamOutput) []provider.Event {
	switch v := ev.(type) {
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		switch d := v.Value.Delta.(type) {
		case *types.ContentBlockDeltaMemberText:
			if d.Value == "" {
				return nil
			}
			return []provider.Event{{Type: provider.EventTextDelta, Delta: d.Value}}
		case *types.ContentBlockDeltaMemberReasoningContent:
			if r, ok := d.Value.(*types.ReasoningContentBlockDeltaMemberText); ok && r.Value != "" {
				return []provider.Event{{Type: provider.EventReasoningDelta, Delta: r.Value}}
			}
		}
	case *types.ConverseStreamOutputMemberMessageStop:
		return []provider.Event{{Type: provider.EventDone, FinishReason: string(v.Value.StopReason)}}
	}
	return nil
}

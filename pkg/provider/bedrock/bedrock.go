package bedrock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/debug"
	"github.com/llmarena/arena/pkg/provider"
)

// converser is the subset of the Bedrock runtime client used here.
type converser interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Client streams completions from one Bedrock model.
type Client struct {
	api     converser
	modelID string
}

var _ provider.Provider = (*Client)(nil)

// New creates a Client with static credentials for cfg.Region.
func New(cfg Config) *Client {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	rt := bedrockruntime.New(bedrockruntime.Options{
		Region:      cfg.Region,
		Credentials: aws.NewCredentialsCache(creds),
	})
	return &Client{api: rt, modelID: cfg.ModelID}
}

// Name returns "bedrock".
func (c *Client) Name() string { return "bedrock" }

// Stream starts a ConverseStream call. The request model is ignored in favor
// of the model id the client was built for, since directory ids may carry a
// "bedrock@" prefix.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	out, err := c.api.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(c.modelID),
		Messages: buildMessages(req.Messages),
	})
	if err != nil {
		return nil, api.NewProviderError(fmt.Sprintf("bedrock converse stream: %v", err))
	}

	stream := out.GetStream()
	if stream == nil {
		return nil, api.NewProviderError("bedrock returned no response stream")
	}

	ch := make(chan provider.Event, 16)
	go func() {
		defer close(ch)
		defer stream.Close()
		pump(ctx, stream.Events(), stream.Err, ch)
	}()
	return ch, nil
}

// pump forwards translated events until the source closes or ctx ends.
// errFn is consulted once the source closes.
func pump(ctx context.Context, events <-chan types.ConverseStreamOutput, errFn func() error, ch chan<- provider.Event) {
	done := false
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if err := errFn(); err != nil {
					provider.Send(ctx, ch, provider.Event{
						Type: provider.EventError,
						Err:  api.NewProviderError(fmt.Sprintf("bedrock stream: %v", err)),
					})
					return
				}
				if !done {
					provider.Send(ctx, ch, provider.Event{Type: provider.EventDone})
				}
				return
			}
			for _, pe := range translateEvent(ev) {
				if pe.Type == provider.EventReasoningDelta {
					debug.Log("providers", "bedrock reasoning delta", "bytes", len(pe.Delta))
				}
				if !provider.Send(ctx, ch, pe) {
					return
				}
				if pe.Type == provider.EventDone {
					done = true
				}
			}
		}
	}
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (c *Client) Close() error {
	slog.Debug("closing bedrock client", "model", c.modelID)
	return nil
}

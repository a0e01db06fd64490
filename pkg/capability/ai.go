package capability

import (
	"context"

	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/aretw0/lattice/pkg/rpc"
)

// AskOptions tunes an AI request.
type AskOptions struct {
	Model      string
	Creativity string
	// ModelMappings maps model aliases to provider model ids.
	ModelMappings map[string]string
}

func (o AskOptions) wire() map[string]any {
	m := map[string]any{}
	if o.Model != "" {
		m["model"] = o.Model
	}
	if o.Creativity != "" {
		m["creativity"] = o.Creativity
	}
	if len(o.ModelMappings) > 0 {
		mappings := make(map[string]any, len(o.ModelMappings))
		for k, v := range o.ModelMappings {
			mappings[k] = v
		}
		m["modelMappings"] = mappings
	}
	return m
}

// Ask streams an answer to prompt. The stream stays open until the host ends
// it, reports an error, or ctx is done.
func (c *Client) Ask(ctx context.Context, prompt string, opts AskOptions) *rpc.Stream {
	return c.streams.Open(ctx, "ai-ask-stream", func(id string) error {
		return c.sender.Send(protocol.Message("ai-ask-stream", map[string]any{
			"requestId": id,
			"prompt":    prompt,
			"options":   opts.wire(),
		}))
	})
}

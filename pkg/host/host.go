package host

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/mitchellh/mapstructure"
)

var (
	// ErrNoExecutor is reported to the plugin when a capability request
	// arrives and no Executor is configured.
	ErrNoExecutor = errors.New("host: no executor configured")
	// ErrUnsupported is returned by executors for capabilities they do not
	// implement.
	ErrUnsupported = errors.New("host: capability not supported")
	// ErrNoAction is returned when there is no derived action to execute.
	ErrNoAction = errors.New("host: no action")
	// ErrBadDeepLink rejects a deep link that is not an OAuth redirect.
	ErrBadDeepLink = errors.New("host: malformed deep link")
)

// Request is one capability request from the plugin. Payload is the decoded
// message payload, requestId included.
type Request struct {
	Type    string
	ID      string
	Payload map[string]any
}

// Decode maps the payload onto v using mapstructure tags, converting
// loosely typed values where needed.
func (r Request) Decode(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           v,
	})
	if err != nil {
		return err
	}
	return dec.Decode(r.Payload)
}

// Executor performs capability operations on the plugin's behalf. The
// result is sent back as the response's JSON result. Fire-and-forget
// messages such as open and SHOW_HUD go through Execute too; their result
// is discarded.
type Executor interface {
	Execute(ctx context.Context, req Request) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Streamer is implemented by executors that answer ai-ask-stream. emit
// delivers one chunk; the returned text is the authoritative full answer.
type Streamer interface {
	Stream(ctx context.Context, req Request, emit func(text string)) (string, error)
}

// AuthorizeRequest asks the user to authorize with an OAuth provider.
type AuthorizeRequest struct {
	URL          string `mapstructure:"url"`
	State        string `mapstructure:"state"`
	ProviderName string `mapstructure:"providerName"`
	ProviderIcon string `mapstructure:"providerIcon"`
	Description  string `mapstructure:"description"`
}

// Authorizer opens an authorization URL. The code comes back later through
// Session.HandleDeepLink.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthorizeRequest) error
}

// Observer receives session events. internal/metrics implements it with
// Prometheus collectors.
type Observer interface {
	FrameError()
	BatchApplied(cmds []protocol.Command)
	UnknownCommand(typ string)
	PluginLog()
	CapabilityServed(typ, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) FrameError()                                   {}
func (nopObserver) BatchApplied([]protocol.Command)               {}
func (nopObserver) UnknownCommand(string)                         {}
func (nopObserver) PluginLog()                                    {}
func (nopObserver) CapabilityServed(string, string, time.Duration) {}

package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/aretw0/lattice/pkg/rpc"
	"github.com/mitchellh/mapstructure"
)

// Host-to-plugin response actions.
const (
	ActionOAuthResponse = "oauth-authorize-response"
	ActionStreamChunk   = "ai-stream-chunk"
	ActionStreamEnd     = "ai-stream-end"
	ActionStreamError   = "ai-stream-error"

	responseSuffix = "-response"
	streamPrefix   = "ai-stream-"
)

// ErrInvalidOptions rejects a request locally, before anything is sent.
var ErrInvalidOptions = errors.New("capability: invalid options")

// Sender writes one message to the host.
type Sender interface {
	Send(msg any) error
}

// Client issues capability requests and matches the host's responses.
type Client struct {
	sender Sender
	policy rpc.Policy
	logger *slog.Logger

	requests *rpc.Bus[any]
	states   *rpc.Bus[string]
	streams  *rpc.Streams

	nextID func() int64

	mu     sync.Mutex
	toasts map[int64]*Toast
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	policy  rpc.Policy
	logger  *slog.Logger
	nextID  func() int64
	busOpts []rpc.Option
}

// WithPolicy overrides the timeout classes.
func WithPolicy(p rpc.Policy) Option {
	return func(c *clientConfig) {
		c.policy = p
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithInstanceIDs makes toast ids come from fn. Share the reconciler's
// allocator so toast ids never collide with node ids.
func WithInstanceIDs(fn func() int64) Option {
	return func(c *clientConfig) {
		c.nextID = fn
	}
}

// WithBusOptions passes options through to the request bus.
func WithBusOptions(opts ...rpc.Option) Option {
	return func(c *clientConfig) {
		c.busOpts = append(c.busOpts, opts...)
	}
}

// New creates a Client that writes requests through sender.
func New(sender Sender, opts ...Option) *Client {
	var counter atomic.Int64
	cfg := clientConfig{
		policy: rpc.DefaultPolicy(),
		logger: logging.NewNop(),
		nextID: func() int64 { return counter.Add(1) },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.policy = cfg.policy.Normalize()

	busOpts := append([]rpc.Option{
		rpc.WithTimeout(cfg.policy.Default),
		rpc.WithLogger(cfg.logger),
	}, cfg.busOpts...)

	return &Client{
		sender:   sender,
		policy:   cfg.policy,
		logger:   cfg.logger,
		requests: rpc.NewBus[any](append(busOpts, rpc.WithName("requests"))...),
		states:   rpc.NewBus[string](rpc.WithLogger(cfg.logger), rpc.WithName("oauth")),
		streams:  rpc.NewStreams(rpc.WithLogger(cfg.logger), rpc.WithName("ai")),
		nextID:   cfg.nextID,
		toasts:   make(map[int64]*Toast),
	}
}

// Close rejects everything still pending.
func (c *Client) Close() {
	c.requests.Close()
	c.states.Close()
	c.streams.Close()
}

// Pending returns the number of outstanding requests across all namespaces.
func (c *Client) Pending() int {
	return c.requests.Len() + c.states.Len() + c.streams.Len()
}

type responsePayload struct {
	RequestID string          `json:"requestId"`
	Result    json.RawMessage `json:"result"`
	Error     string          `json:"error"`
}

type oauthResponsePayload struct {
	State string `json:"state"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type streamPayload struct {
	RequestID  string `json:"requestId"`
	Text       string `json:"text"`
	FullText   string `json:"fullText"`
	LegacyFull string `json:"full_text"`
	Error      string `json:"error"`
}

// Deliver routes one host instruction to the matching pending request. It
// reports whether action belongs to the capability channel. Deliver never
// blocks, so it is safe to call from the reader goroutine.
func (c *Client) Deliver(action string, payload json.RawMessage) bool {
	switch {
	case action == ActionOAuthResponse:
		var p oauthResponsePayload
		if err := unmarshal(payload, &p); err != nil {
			c.logger.Warn("malformed oauth response", "err", err)
			return true
		}
		if p.Error != "" {
			c.states.Reject(p.State, &rpc.RemoteError{Type: "oauth-authorize", Message: p.Error})
		} else if !c.states.Resolve(p.State, p.Code) {
			c.logger.Warn("oauth state mismatch", "state", p.State)
		}
		return true

	case strings.HasPrefix(action, streamPrefix):
		var p streamPayload
		if err := unmarshal(payload, &p); err != nil {
			c.logger.Warn("malformed stream message", "action", action, "err", err)
			return true
		}
		switch action {
		case ActionStreamChunk:
			c.streams.Chunk(p.RequestID, p.Text)
		case ActionStreamEnd:
			full := p.FullText
			if full == "" {
				full = p.LegacyFull
			}
			c.streams.End(p.RequestID, full)
		case ActionStreamError:
			c.streams.Fail(p.RequestID, p.Error)
		default:
			c.logger.Debug("unknown stream message", "action", action)
		}
		return true

	case strings.HasSuffix(action, responseSuffix):
		var p responsePayload
		if err := unmarshal(payload, &p); err != nil {
			c.logger.Warn("malformed response", "action", action, "err", err)
			return true
		}
		if p.Error != "" {
			c.requests.Reject(p.RequestID, &rpc.RemoteError{
				Type:    strings.TrimSuffix(action, responseSuffix),
				Message: p.Error,
			})
			return true
		}
		var result any
		if len(p.Result) > 0 {
			if err := json.Unmarshal(p.Result, &result); err != nil {
				c.requests.Reject(p.RequestID, fmt.Errorf("decode %s result: %w", action, err))
				return true
			}
		}
		c.requests.Resolve(p.RequestID, result)
		return true
	}
	return false
}

func unmarshal(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return protocol.ErrMalformed
	}
	return json.Unmarshal(payload, v)
}

// request sends typ with a fresh requestId merged into payload and waits for
// the host's answer.
func (c *Client) request(ctx context.Context, typ string, timeout time.Duration, payload map[string]any) (any, error) {
	f := c.requests.CallWithTimeout(typ, timeout, func(id string) error {
		body := maps.Clone(payload)
		if body == nil {
			body = make(map[string]any, 1)
		}
		body["requestId"] = id
		return c.sender.Send(protocol.Message(typ, body))
	})
	return f.Await(ctx)
}

// call is request with the default timeout, decoding the result into out
// when out is non-nil.
func (c *Client) call(ctx context.Context, typ string, payload map[string]any, out any) error {
	result, err := c.request(ctx, typ, c.policy.Default, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeResult(typ, result, out)
}

// notify sends a fire-and-forget message.
func (c *Client) notify(typ string, payload map[string]any) error {
	return c.sender.Send(protocol.Message(typ, payload))
}

func decodeResult(typ string, result, out any) error {
	if result == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("decode %s result: %w", typ, err)
	}
	return nil
}

// Package capability is a reference host.Executor. It keeps the clipboard in
// memory, stores OAuth tokens in a ports.TokenStore and answers system
// queries with empty results. Hooks plug in real implementations.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/host"
	"github.com/aretw0/lattice/pkg/ports"
)

// DefaultHistory is how many clipboard entries are kept.
const DefaultHistory = 16

// Content is a clipboard entry.
type Content struct {
	Text string `json:"text,omitempty" mapstructure:"text"`
	HTML string `json:"html,omitempty" mapstructure:"html"`
	File string `json:"file,omitempty" mapstructure:"file"`
}

// Hooks connect the executor to real implementations. Nil hooks fall back
// to the reference behavior.
type (
	OpenFunc         func(ctx context.Context, target, application string) error
	HUDFunc          func(ctx context.Context, title string) error
	BrowserFunc      func(ctx context.Context, method string, params map[string]any) (any, error)
	AskFunc          func(ctx context.Context, prompt string, options map[string]any, emit func(string)) (string, error)
	SelectedTextFunc func(ctx context.Context) (string, error)
)

// Executor is a host.Executor backed by process memory and a token store.
// It implements host.Streamer too.
type Executor struct {
	tokens  ports.TokenStore
	logger  *slog.Logger
	limit   int
	open    OpenFunc
	hud     HUDFunc
	browser BrowserFunc
	ask     AskFunc
	text    SelectedTextFunc

	mu      sync.Mutex
	current Content
	history []Content
	pasted  []Content
}

// Option configures an Executor.
type Option func(*Executor)

// WithTokenStore persists OAuth tokens. The default is in memory.
func WithTokenStore(store ports.TokenStore) Option {
	return func(e *Executor) {
		e.tokens = store
	}
}

// WithLogger configures a logger for the Executor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithHistory caps the clipboard history.
func WithHistory(n int) Option {
	return func(e *Executor) {
		e.limit = n
	}
}

// WithOpener handles open requests.
func WithOpener(fn OpenFunc) Option {
	return func(e *Executor) {
		e.open = fn
	}
}

// WithHUD handles SHOW_HUD.
func WithHUD(fn HUDFunc) Option {
	return func(e *Executor) {
		e.hud = fn
	}
}

// WithBrowser answers browser-extension-request.
func WithBrowser(fn BrowserFunc) Option {
	return func(e *Executor) {
		e.browser = fn
	}
}

// WithAsk answers ai-ask-stream.
func WithAsk(fn AskFunc) Option {
	return func(e *Executor) {
		e.ask = fn
	}
}

// WithSelectedText answers get-selected-text.
func WithSelectedText(fn SelectedTextFunc) Option {
	return func(e *Executor) {
		e.text = fn
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		logger: logging.NewNop(),
		limit:  DefaultHistory,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tokens == nil {
		e.tokens = memory.NewStore()
	}
	return e
}

// Execute serves one capability request.
func (e *Executor) Execute(ctx context.Context, req host.Request) (any, error) {
	switch req.Type {
	case "clipboard-copy":
		var p struct {
			Content Content `mapstructure:"content"`
			Options struct {
				Concealed bool `mapstructure:"concealed"`
			} `mapstructure:"options"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		e.copy(p.Content, p.Options.Concealed)
		return nil, nil

	case "clipboard-paste":
		var p struct {
			Content Content `mapstructure:"content"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.pasted = append(e.pasted, p.Content)
		e.mu.Unlock()
		e.logger.Info("paste", "text", p.Content.Text)
		return nil, nil

	case "clipboard-read", "clipboard-read-text":
		var p struct {
			Offset int `mapstructure:"offset"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		c := e.read(p.Offset)
		if req.Type == "clipboard-read-text" {
			return Content{Text: c.Text}, nil
		}
		return c, nil

	case "clipboard-clear":
		e.mu.Lock()
		e.current = Content{}
		e.mu.Unlock()
		return nil, nil

	case "system-get-applications":
		return []any{}, nil
	case "system-get-default-application", "system-get-frontmost-application":
		return nil, nil
	case "get-selected-finder-items":
		return []any{}, nil
	case "system-show-in-finder", "system-trash":
		e.logger.Info("ignoring file system request", "type", req.Type, "payload", req.Payload)
		return nil, nil

	case "get-selected-text":
		if e.text == nil {
			return "", nil
		}
		return e.text(ctx)

	case "browser-extension-request":
		if e.browser == nil {
			return nil, fmt.Errorf("%w: browser extension", host.ErrUnsupported)
		}
		var p struct {
			Method string         `mapstructure:"method"`
			Params map[string]any `mapstructure:"params"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return e.browser(ctx, p.Method, p.Params)

	case "oauth-get-tokens":
		provider, err := providerID(req)
		if err != nil {
			return nil, err
		}
		t, err := e.tokens.LoadTokens(ctx, provider)
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return t, nil

	case "oauth-set-tokens":
		var p struct {
			ProviderID string       `mapstructure:"providerId"`
			Tokens     ports.Tokens `mapstructure:"tokens"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if p.ProviderID == "" {
			return nil, errors.New("missing providerId")
		}
		return nil, e.tokens.SaveTokens(ctx, p.ProviderID, p.Tokens)

	case "oauth-remove-tokens":
		provider, err := providerID(req)
		if err != nil {
			return nil, err
		}
		return nil, e.tokens.DeleteTokens(ctx, provider)

	case "open":
		var p struct {
			Target      string `mapstructure:"target"`
			Application string `mapstructure:"application"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if e.open == nil {
			e.logger.Info("open", "target", p.Target, "application", p.Application)
			return nil, nil
		}
		return nil, e.open(ctx, p.Target, p.Application)

	case "SHOW_HUD":
		title, _ := req.Payload["title"].(string)
		if e.hud == nil {
			e.logger.Info("hud", "title", title)
			return nil, nil
		}
		return nil, e.hud(ctx, title)
	}
	return nil, fmt.Errorf("%w: %s", host.ErrUnsupported, req.Type)
}

// Stream answers ai-ask-stream through the Ask hook.
func (e *Executor) Stream(ctx context.Context, req host.Request, emit func(string)) (string, error) {
	if e.ask == nil {
		return "", fmt.Errorf("%w: AI", host.ErrUnsupported)
	}
	var p struct {
		Prompt  string         `mapstructure:"prompt"`
		Options map[string]any `mapstructure:"options"`
	}
	if err := decode(req, &p); err != nil {
		return "", err
	}
	return e.ask(ctx, p.Prompt, p.Options, emit)
}

// Pasted returns what plugins asked to paste, oldest first.
func (e *Executor) Pasted() []Content {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Content(nil), e.pasted...)
}

// copy sets the clipboard. Concealed entries stay out of the history.
func (e *Executor) copy(c Content, concealed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = c
	if concealed {
		return
	}
	e.history = append([]Content{c}, e.history...)
	if len(e.history) > e.limit {
		e.history = e.history[:e.limit]
	}
}

// read returns the current entry for offset 0 and earlier history entries
// after that.
func (e *Executor) read(offset int) Content {
	e.mu.Lock()
	defer e.mu.Unlock()
	if offset <= 0 {
		return e.current
	}
	if offset < len(e.history) {
		return e.history[offset]
	}
	return Content{}
}

func decode(req host.Request, v any) error {
	if err := req.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", req.Type, err)
	}
	return nil
}

func providerID(req host.Request) (string, error) {
	id, _ := req.Payload["providerId"].(string)
	if id == "" {
		return "", fmt.Errorf("%s: missing providerId", req.Type)
	}
	return id, nil
}

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/process"
	"github.com/aretw0/lattice/pkg/capability"
	"github.com/aretw0/lattice/pkg/hoststore"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/aretw0/lattice/pkg/transport"
)

// Capability outcomes reported to the Observer.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Session is the host end of one plugin connection. It applies the
// plugin's batches to a tree store, serves its capability requests and
// sends it instructions.
//
// Frames are processed in arrival order on the goroutine running Run.
// Capability requests run on their own goroutines.
type Session struct {
	in    *transport.Reader
	out   *transport.LineWriter
	store *hoststore.Store
	proc  *process.Process

	executor   Executor
	authorizer Authorizer
	prefs      ports.PreferenceStore
	observer   Observer
	logger     *slog.Logger
	onError    func(message string)

	mu      sync.Mutex
	current string
	subs    map[int]func(*hoststore.Snapshot)
	nextSub int

	workers sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithExecutor serves capability requests.
func WithExecutor(e Executor) Option {
	return func(s *Session) {
		s.executor = e
	}
}

// WithAuthorizer opens OAuth authorization URLs.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Session) {
		s.authorizer = a
	}
}

// WithPreferenceStore persists preference values and loads them when a
// plugin starts.
func WithPreferenceStore(store ports.PreferenceStore) Option {
	return func(s *Session) {
		s.prefs = store
	}
}

// WithObserver reports session events, usually to metrics.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

// WithLogger configures a logger for the Session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithErrorHandler is called with each uncaught error the plugin reports.
func WithErrorHandler(fn func(message string)) Option {
	return func(s *Session) {
		s.onError = fn
	}
}

// WithStore uses an existing tree store.
func WithStore(store *hoststore.Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

func newSession(opts ...Option) *Session {
	s := &Session{
		observer: nopObserver{},
		logger:   logging.NewNop(),
		subs:     make(map[int]func(*hoststore.Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = hoststore.New(hoststore.WithLogger(s.logger))
	}
	return s
}

// New attaches a session to a plugin that writes frames to r and reads
// instructions from w.
func New(r io.Reader, w io.Writer, opts ...Option) *Session {
	s := newSession(opts...)
	s.in = transport.NewReader(r)
	s.out = transport.NewLineWriter(w)
	return s
}

// Spawn starts the plugin described by cfg and attaches a session to its
// pipes. Close stops the process.
func Spawn(ctx context.Context, cfg process.Config, opts ...Option) (*Session, error) {
	s := newSession(opts...)
	p, err := process.Start(ctx, cfg, process.WithLogger(s.logger.With("component", "plugin")))
	if err != nil {
		return nil, err
	}
	s.proc = p
	s.in = transport.NewReader(p.Stdout)
	s.out = transport.NewLineWriter(p.Stdin)
	return s, nil
}

// Close stops a spawned plugin. It is a no-op for attached sessions.
func (s *Session) Close() error {
	if s.proc == nil {
		return nil
	}
	return s.proc.Stop()
}

// Run reads frames until the plugin's output ends. A clean end returns
// nil. Pending capability work is canceled and awaited before Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.workers.Wait()
	}()

	s.logger.Debug("host session started")
	for {
		raw, err := s.in.Next()
		if err != nil {
			if errors.Is(err, transport.ErrDecode) {
				s.logger.Warn("skipping undecodable frame", "err", err)
				s.observer.FrameError()
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("read plugin output: %w", err)
		}
		s.route(ctx, raw)
	}
}

func (s *Session) route(ctx context.Context, raw any) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		s.logger.Warn("skipping malformed message", "err", err)
		s.observer.FrameError()
		return
	}

	switch {
	case env.Type == protocol.MessageBatchUpdate:
		cmds, errs := protocol.DecodeBatch(env.Payload)
		s.reportDecodeErrors(errs)
		s.apply(cmds)

	case protocol.IsCommand(env.Type):
		cmd, err := protocol.DecodeCommand(env)
		if err != nil {
			s.reportDecodeErrors([]error{err})
			return
		}
		s.apply([]protocol.Command{cmd})

	case env.Type == protocol.MessageLog:
		s.observer.PluginLog()
		s.logger.Info("plugin log", slog.Group("plugin", "name", s.currentPlugin(), "payload", env.Payload))

	case env.Type == protocol.MessageError:
		msg := fmt.Sprint(env.Payload)
		s.logger.Error("plugin error", "plugin", s.currentPlugin(), "message", msg)
		if s.onError != nil {
			s.onError(msg)
		}

	case env.Type == "oauth-authorize":
		s.authorize(ctx, env)

	case env.Type == "ai-ask-stream":
		s.stream(ctx, env)

	case env.Type == "open" || env.Type == "SHOW_HUD":
		s.notify(ctx, env)

	default:
		payload, _ := env.Payload.(map[string]any)
		if id, ok := payload["requestId"].(string); ok && id != "" {
			s.serve(ctx, Request{Type: env.Type, ID: id, Payload: payload})
			return
		}
		s.logger.Warn("unknown message", "type", env.Type)
	}
}

func (s *Session) reportDecodeErrors(errs []error) {
	for _, err := range errs {
		var unknown *protocol.UnknownCommandError
		if errors.As(err, &unknown) {
			s.observer.UnknownCommand(unknown.Type)
			s.logger.Warn("skipping unknown command", "type", unknown.Type)
			continue
		}
		s.observer.FrameError()
		s.logger.Warn("skipping malformed command", "err", err)
	}
}

func (s *Session) apply(cmds []protocol.Command) {
	snap := s.store.Apply(cmds)
	s.observer.BatchApplied(cmds)
	s.publish(snap)
}

// serve runs a capability request and replies with <type>-response.
func (s *Session) serve(ctx context.Context, req Request) {
	s.goWork(func() {
		start := time.Now()
		result, err := s.execute(ctx, req)

		resp := map[string]any{"requestId": req.ID}
		outcome := OutcomeOK
		if err != nil {
			outcome = OutcomeError
			resp["error"] = err.Error()
			s.logger.Debug("capability request failed", "type", req.Type, "err", err)
		} else {
			resp["result"] = result
		}
		s.observer.CapabilityServed(req.Type, outcome, time.Since(start))
		s.send(req.Type+"-response", resp)
	})
}

func (s *Session) execute(ctx context.Context, req Request) (any, error) {
	if s.executor == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoExecutor, req.Type)
	}
	return s.executor.Execute(ctx, req)
}

func (s *Session) notify(ctx context.Context, env protocol.Envelope) {
	payload, _ := env.Payload.(map[string]any)
	req := Request{Type: env.Type, Payload: payload}
	s.goWork(func() {
		start := time.Now()
		_, err := s.execute(ctx, req)
		outcome := OutcomeOK
		if err != nil {
			outcome = OutcomeError
			s.logger.Warn("notification failed", "type", req.Type, "err", err)
		}
		s.observer.CapabilityServed(req.Type, outcome, time.Since(start))
	})
}

func (s *Session) authorize(ctx context.Context, env protocol.Envelope) {
	payload, _ := env.Payload.(map[string]any)
	req := Request{Type: env.Type, Payload: payload}
	var ar AuthorizeRequest
	if err := req.Decode(&ar); err != nil || ar.State == "" {
		s.logger.Warn("dropping malformed oauth-authorize", "err", err)
		return
	}
	s.goWork(func() {
		err := ErrUnsupported
		if s.authorizer != nil {
			err = s.authorizer.Authorize(ctx, ar)
		}
		if err != nil {
			s.logger.Warn("authorization failed", "provider", ar.ProviderName, "err", err)
			s.send(capability.ActionOAuthResponse, map[string]any{"state": ar.State, "error": err.Error()})
			s.observer.CapabilityServed(req.Type, OutcomeError, 0)
		}
	})
}

func (s *Session) stream(ctx context.Context, env protocol.Envelope) {
	payload, _ := env.Payload.(map[string]any)
	id, _ := payload["requestId"].(string)
	if id == "" {
		s.logger.Warn("dropping ai-ask-stream without requestId")
		return
	}
	req := Request{Type: env.Type, ID: id, Payload: payload}

	s.goWork(func() {
		start := time.Now()
		streamer, ok := s.executor.(Streamer)
		if !ok {
			s.send(capability.ActionStreamError, map[string]any{"requestId": id, "error": ErrUnsupported.Error()})
			s.observer.CapabilityServed(req.Type, OutcomeError, time.Since(start))
			return
		}
		full, err := streamer.Stream(ctx, req, func(text string) {
			s.send(capability.ActionStreamChunk, map[string]any{"requestId": id, "text": text})
		})
		if err != nil {
			s.send(capability.ActionStreamError, map[string]any{"requestId": id, "error": err.Error()})
			s.observer.CapabilityServed(req.Type, OutcomeError, time.Since(start))
			return
		}
		s.send(capability.ActionStreamEnd, map[string]any{"requestId": id, "fullText": full})
		s.observer.CapabilityServed(req.Type, OutcomeOK, time.Since(start))
	})
}

func (s *Session) goWork(fn func()) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		fn()
	}()
}

func (s *Session) send(action string, payload any) error {
	if err := s.out.Send(action, payload); err != nil {
		s.logger.Warn("failed to send instruction", "action", action, "err", err)
		return fmt.Errorf("send %s: %w", action, err)
	}
	return nil
}

func (s *Session) currentPlugin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Snapshot returns the current tree.
func (s *Session) Snapshot() *hoststore.Snapshot {
	return s.store.Snapshot()
}

// Subscribe calls fn with each new snapshot until the returned function is
// called. fn runs on the session goroutine and must not block.
func (s *Session) Subscribe(fn func(*hoststore.Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) publish(snap *hoststore.Snapshot) {
	s.mu.Lock()
	fns := make([]func(*hoststore.Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

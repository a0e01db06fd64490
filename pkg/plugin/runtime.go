package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"runtime/debug"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/capability"
	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/aretw0/lattice/pkg/reconciler"
	"github.com/aretw0/lattice/pkg/rpc"
	"github.com/aretw0/lattice/pkg/transport"
	"github.com/aretw0/lattice/pkg/ui"
)

// Host-to-plugin instruction actions.
const (
	ActionRunPlugin        = "run-plugin"
	ActionDispatchEvent    = "dispatch-event"
	ActionPopView          = "pop-view"
	ActionPluginList       = "plugin-list"
	ActionPreferenceValues = "preference-values"
	ActionGoBack           = "go-back-to-plugin-list"
)

// RunPayload starts a command.
type RunPayload struct {
	PluginPath  string         `json:"pluginPath"`
	PluginName  string         `json:"pluginName"`
	CommandName string         `json:"commandName"`
	Mode        Mode           `json:"mode"`
	Preferences map[string]any `json:"preferences"`
}

// EventPayload invokes a live handler.
type EventPayload struct {
	InstanceID  int64  `json:"instanceId"`
	HandlerName string `json:"handlerName"`
	Args        []any  `json:"args"`
}

// PreferenceValuesPayload pushes stored preference values for a plugin.
type PreferenceValuesPayload struct {
	PluginName string         `json:"pluginName"`
	Values     map[string]any `json:"values"`
}

// PluginListPayload announces the plugins the host knows.
type PluginListPayload struct {
	Plugins []Info `json:"plugins"`
}

// Runtime is the plugin process: it reads host instructions, runs commands
// and ships UI updates back.
//
// A reader goroutine drains instructions and settles capability responses
// directly. Everything that touches the UI is queued onto the goroutine
// running Run, so render passes never interleave.
type Runtime struct {
	registry *Registry
	in       *transport.LineReader
	out      *transport.Writer
	caps     *capability.Client
	rec      *reconciler.Reconciler
	logger   *slog.Logger

	queue *workQueue
	ctx   context.Context

	// UI goroutine only.
	app    *App
	stored map[string]map[string]any
	known  []Info
}

type runtimeConfig struct {
	logger *slog.Logger
	policy rpc.Policy
}

// Option configures a Runtime.
type Option func(*runtimeConfig)

// WithLogger replaces the default logger, which forwards records to the
// host as log messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runtimeConfig) {
		c.logger = logger
	}
}

// WithPolicy overrides capability timeouts.
func WithPolicy(p rpc.Policy) Option {
	return func(c *runtimeConfig) {
		c.policy = p
	}
}

// New creates a Runtime reading instructions from r and writing frames to w.
func New(registry *Registry, r io.Reader, w io.Writer, opts ...Option) *Runtime {
	out := transport.NewWriter(w)
	cfg := runtimeConfig{policy: rpc.DefaultPolicy()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewFrameLogger(out, slog.LevelInfo)
	}

	rec := reconciler.New(reconciler.WithLogger(cfg.logger))
	return &Runtime{
		registry: registry,
		in:       transport.NewLineReader(r),
		out:      out,
		rec:      rec,
		logger:   cfg.logger,
		caps: capability.New(out,
			capability.WithPolicy(cfg.policy),
			capability.WithLogger(cfg.logger),
			capability.WithInstanceIDs(rec.Tree().NextID),
		),
		queue:  newWorkQueue(),
		stored: make(map[string]map[string]any),
	}
}

// Capabilities returns the capability client shared by all commands.
func (r *Runtime) Capabilities() *capability.Client {
	return r.caps
}

// Run processes instructions until the input ends or ctx is done. A clean
// end of input returns nil.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.ctx = ctx
	defer r.caps.Close()

	readErr := make(chan error, 1)
	go func() { readErr <- r.readLoop() }()

	r.logger.Debug("plugin runtime started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.queue.signal:
			r.drain()
		case err := <-readErr:
			r.drain()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (r *Runtime) drain() {
	for _, fn := range r.queue.pop() {
		r.safely("ui task", fn)
	}
}

func (r *Runtime) readLoop() error {
	for {
		ins, err := r.in.Next()
		if err != nil {
			if errors.Is(err, transport.ErrDecode) {
				r.logger.Warn("skipping malformed instruction", "err", err)
				continue
			}
			return err
		}
		r.handle(ins)
	}
}

// handle runs on the reader goroutine.
func (r *Runtime) handle(ins transport.Instruction) {
	if r.caps.Deliver(ins.Action, ins.Payload) {
		return
	}

	switch ins.Action {
	case ActionRunPlugin:
		var p RunPayload
		if r.decode(ins, &p) {
			r.enqueue(func() { r.runCommand(p) })
		}
	case ActionDispatchEvent:
		var p EventPayload
		if r.decode(ins, &p) {
			r.enqueue(func() { r.dispatch(p) })
		}
	case ActionPopView:
		r.enqueue(r.pop)
	case ActionPreferenceValues:
		var p PreferenceValuesPayload
		if r.decode(ins, &p) {
			r.enqueue(func() { r.storePreferences(p) })
		}
	case ActionPluginList:
		var p PluginListPayload
		if r.decode(ins, &p) {
			r.enqueue(func() { r.known = p.Plugins })
		}
	case ActionGoBack:
		r.enqueue(r.unmount)
	default:
		r.logger.Warn("unknown instruction", "action", ins.Action)
	}
}

func (r *Runtime) decode(ins transport.Instruction, v any) bool {
	if err := ins.Decode(v); err != nil {
		r.logger.Warn("dropping instruction", "action", ins.Action, "err", err)
		return false
	}
	return true
}

func (r *Runtime) enqueue(fn func()) {
	r.queue.push(fn)
}

// safely runs plugin code, turning a panic into a log record and an error
// message so the loop keeps going.
func (r *Runtime) safely(what string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("%s panicked: %v", what, rec)
			r.logger.Error(msg, "stack", string(debug.Stack()))
			r.sendError(msg)
		}
	}()
	fn()
}

func (r *Runtime) sendError(msg string) {
	if err := r.out.Send(protocol.Message(protocol.MessageError, msg)); err != nil {
		r.logger.Warn("failed to report error", "err", err)
	}
}

func (r *Runtime) runCommand(p RunPayload) {
	plug, cmd, err := r.registry.Lookup(p.PluginName, p.CommandName)
	if err != nil {
		r.logger.Error("cannot run command", "err", err)
		r.sendError(err.Error())
		return
	}
	if r.app != nil {
		r.unmount()
	}

	prefs := plug.Defaults()
	maps.Copy(prefs, r.stored[plug.Name])
	maps.Copy(prefs, p.Preferences)

	mode := cmd.Mode
	if mode == "" {
		mode = ModeView
	}
	if p.Mode != "" && p.Mode != mode {
		r.logger.Warn("host mode differs from command mode", "host", p.Mode, "command", mode)
	}

	app := &App{rt: r, plugin: plug, command: cmd, mode: mode, prefs: prefs}
	r.logger.Info("running command", "plugin", plug.Name, "command", cmd.Name, "mode", mode)

	if mode == ModeNoView {
		go r.safely("command "+cmd.Name, func() {
			if err := cmd.Run(r.ctx, app); err != nil {
				r.logger.Error("command failed", "command", cmd.Name, "err", err)
				r.sendError(err.Error())
			}
		})
		return
	}

	r.app = app
	app.root = cmd.View(app)
	r.render()
}

// render reconciles the current top-level description and ships the batch.
func (r *Runtime) render() {
	app := r.app
	if app == nil || app.root == nil {
		return
	}
	el := app.root()
	cmds, err := r.rec.Render(el)
	if err != nil {
		r.logger.Error("render rejected", "err", err)
		r.sendError(err.Error())
		return
	}
	r.ship(cmds)
}

func (r *Runtime) ship(cmds []protocol.Command) {
	if len(cmds) == 0 {
		return
	}
	if err := r.out.Send(protocol.Batch(cmds)); err != nil {
		r.logger.Error("failed to send batch", "err", err)
	}
}

func (r *Runtime) dispatch(p EventPayload) {
	if fn, ok := r.caps.ToastHandler(p.InstanceID, p.HandlerName); ok {
		fn()
		return
	}

	tree := r.rec.Tree()
	inst, ok := tree.Get(p.InstanceID)
	if !ok {
		r.logger.Warn("instance not found", "instance", p.InstanceID)
		return
	}

	if h, ok := tree.Handler(p.InstanceID, p.HandlerName); ok {
		if err := invoke(h, p.Args); err != nil {
			r.logger.Error("handler failed", "instance", p.InstanceID, "handler", p.HandlerName, "err", err)
			r.sendError(err.Error())
		}
		return
	}

	// Action.Push carries its destination instead of a callback.
	if p.HandlerName == "onAction" && inst.Kind == ui.KindActionPush && r.app != nil {
		if target, ok := tree.Handler(p.InstanceID, "target"); ok {
			if c, ok := target.(ui.Component); ok {
				r.app.push(c)
				return
			}
		}
	}
	r.logger.Warn("handler not found", "instance", p.InstanceID, "handler", p.HandlerName)
}

func (r *Runtime) pop() {
	if r.app != nil {
		r.app.pop()
	}
}

func (r *Runtime) storePreferences(p PreferenceValuesPayload) {
	r.stored[p.PluginName] = p.Values
	if r.app != nil && r.app.plugin.Name == p.PluginName {
		maps.Copy(r.app.prefs, p.Values)
		r.render()
	}
}

// unmount clears the root container and forgets navigation.
func (r *Runtime) unmount() {
	r.app = nil
	r.ship(r.rec.Clear())
}

type workQueue struct {
	mu     sync.Mutex
	items  []func()
	signal chan struct{}
}

func newWorkQueue() *workQueue {
	return &workQueue{signal: make(chan struct{}, 1)}
}

func (q *workQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *workQueue) pop() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/google/uuid"
)

var (
	// ErrTimeout rejects a request whose deadline passed before a response arrived.
	ErrTimeout = errors.New("rpc: timed out")
	// ErrCanceled rejects a request abandoned by its caller.
	ErrCanceled = errors.New("rpc: canceled")
	// ErrDuplicateKey rejects a request whose correlation key is already pending.
	ErrDuplicateKey = errors.New("rpc: duplicate correlation key")
	// ErrClosed rejects requests still pending when the bus shuts down.
	ErrClosed = errors.New("rpc: bus closed")
)

// RemoteError carries the error string reported by the host.
type RemoteError struct {
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// NewID returns a fresh correlation id.
func NewID() string {
	return uuid.NewString()
}

// Future is the pending result of one request. It settles exactly once.
type Future[T any] struct {
	done   chan struct{}
	once   sync.Once
	value  T
	err    error
	cancel func(cause error)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{}), cancel: func(error) {}}
}

func (f *Future[T]) settle(v T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
		settled = true
	})
	return settled
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled value. It must only be called after Done is closed.
func (f *Future[T]) Result() (T, error) {
	return f.value, f.err
}

// Await blocks until the future settles or ctx ends. Ending ctx cancels the
// request and removes it from its bus.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		f.cancel(ctx.Err())
		<-f.done
		return f.value, f.err
	}
}

// Cancel rejects the request with ErrCanceled if it is still pending.
func (f *Future[T]) Cancel() {
	f.cancel(nil)
}

type config struct {
	timeout time.Duration
	newID   func() string
	logger  *slog.Logger
	name    string
}

// Option configures a Bus or Streams.
type Option func(*config)

// WithTimeout sets the default deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithIDGenerator replaces uuid-based correlation ids.
func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		c.newID = fn
	}
}

// WithLogger configures a logger for unmatched responses.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithName labels the bus in log output.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

func newConfig(opts []Option) config {
	c := config{timeout: DefaultTimeout, newID: NewID, logger: logging.NewNop(), name: "rpc"}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

type entry[T any] struct {
	future *Future[T]
	timer  *time.Timer
	label  string
}

// Bus matches responses to pending requests by correlation key.
// Each key is a terminal one-shot: the first Resolve, Reject, timeout or
// cancellation wins and removes it.
type Bus[T any] struct {
	cfg     config
	mu      sync.Mutex
	pending map[string]*entry[T]
	closed  bool
}

// NewBus creates an empty bus.
func NewBus[T any](opts ...Option) *Bus[T] {
	return &Bus[T]{
		cfg:     newConfig(opts),
		pending: make(map[string]*entry[T]),
	}
}

// Call issues a request under a fresh id with the default timeout. send
// writes the request message; it runs after the entry is registered.
func (b *Bus[T]) Call(label string, send func(id string) error) *Future[T] {
	return b.CallWithTimeout(label, b.cfg.timeout, send)
}

// CallWithTimeout is Call with an explicit deadline.
func (b *Bus[T]) CallWithTimeout(label string, timeout time.Duration, send func(id string) error) *Future[T] {
	id := b.cfg.newID()
	return b.Expect(id, label, timeout, func() error { return send(id) })
}

// Expect issues a request correlated by a caller-chosen key.
func (b *Bus[T]) Expect(key, label string, timeout time.Duration, send func() error) *Future[T] {
	f := newFuture[T]()
	var zero T

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		f.settle(zero, fmt.Errorf("request for %s: %w", label, ErrClosed))
		return f
	}
	if _, dup := b.pending[key]; dup {
		b.mu.Unlock()
		f.settle(zero, fmt.Errorf("request for %s: %w %q", label, ErrDuplicateKey, key))
		return f
	}
	e := &entry[T]{future: f, label: label}
	b.pending[key] = e
	if timeout > 0 {
		e.timer = time.AfterFunc(timeout, func() {
			b.Reject(key, fmt.Errorf("request for %s timed out: %w", label, ErrTimeout))
		})
	}
	b.mu.Unlock()

	f.cancel = func(cause error) {
		err := fmt.Errorf("request for %s: %w", label, ErrCanceled)
		if cause != nil {
			err = fmt.Errorf("request for %s: %w: %w", label, ErrCanceled, cause)
		}
		b.Reject(key, err)
	}

	if err := send(); err != nil {
		b.Reject(key, fmt.Errorf("send %s: %w", label, err))
	}
	return f
}

// Resolve settles key with v. It reports false for unknown or settled keys.
func (b *Bus[T]) Resolve(key string, v T) bool {
	e := b.take(key)
	if e == nil {
		b.cfg.logger.Debug("unmatched response", "bus", b.cfg.name, "key", key)
		return false
	}
	return e.future.settle(v, nil)
}

// Reject settles key with err. It reports false for unknown or settled keys.
func (b *Bus[T]) Reject(key string, err error) bool {
	e := b.take(key)
	if e == nil {
		return false
	}
	var zero T
	return e.future.settle(zero, err)
}

// Has reports whether key is pending.
func (b *Bus[T]) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[key]
	return ok
}

// Len returns the number of pending requests.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close rejects everything pending with ErrClosed and refuses new requests.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	b.closed = true
	pending := b.pending
	b.pending = make(map[string]*entry[T])
	b.mu.Unlock()

	var zero T
	for _, e := range pending {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.future.settle(zero, fmt.Errorf("request for %s: %w", e.label, ErrClosed))
	}
}

func (b *Bus[T]) take(key string) *entry[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.pending[key]
	if !ok {
		return nil
	}
	delete(b.pending, key)
	if e.timer != nil {
		e.timer.Stop()
	}
	return e
}

package rpc

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Stream is one streaming request. Chunks accumulate until the end message
// replaces them with the authoritative full text.
type Stream struct {
	id    string
	label string

	mu       sync.Mutex
	text     strings.Builder
	handlers []func(string)

	once   sync.Once
	done   chan struct{}
	full   string
	err    error
	cancel func(cause error)
}

// ID returns the correlation id of the stream.
func (s *Stream) ID() string {
	return s.id
}

// OnChunk registers fn for chunks that arrive after the call.
func (s *Stream) OnChunk(fn func(text string)) {
	s.mu.Lock()
	s.handlers = append(s.handlers, fn)
	s.mu.Unlock()
}

// Accumulated returns the concatenation of chunks received so far.
func (s *Stream) Accumulated() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Done is closed when the stream ends, fails or is canceled.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the stream settles and returns its full text. Ending ctx
// cancels the stream.
func (s *Stream) Wait(ctx context.Context) (string, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.cancel(ctx.Err())
		<-s.done
	}
	return s.full, s.err
}

func (s *Stream) push(text string) {
	s.mu.Lock()
	s.text.WriteString(text)
	handlers := append([]func(string){}, s.handlers...)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(text)
	}
}

func (s *Stream) finish(full string, err error) bool {
	settled := false
	s.once.Do(func() {
		s.full, s.err = full, err
		close(s.done)
		settled = true
	})
	return settled
}

// Streams tracks open streaming requests by correlation id.
type Streams struct {
	cfg     config
	mu      sync.Mutex
	pending map[string]*Stream
	closed  bool
}

// NewStreams creates an empty registry. Streams carry no deadline; they end
// through their context.
func NewStreams(opts ...Option) *Streams {
	cfg := newConfig(opts)
	return &Streams{cfg: cfg, pending: make(map[string]*Stream)}
}

// Open registers a stream under a fresh id and sends the request. When ctx
// ends before the stream does, the stream fails with ErrCanceled and is removed.
func (r *Streams) Open(ctx context.Context, label string, send func(id string) error) *Stream {
	s := &Stream{
		id:     r.cfg.newID(),
		label:  label,
		done:   make(chan struct{}),
		cancel: func(error) {},
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.finish("", fmt.Errorf("stream %s: %w", label, ErrClosed))
		return s
	}
	r.pending[s.id] = s
	r.mu.Unlock()

	s.cancel = func(cause error) {
		err := fmt.Errorf("stream %s: %w", label, ErrCanceled)
		if cause != nil {
			err = fmt.Errorf("stream %s: %w: %w", label, ErrCanceled, cause)
		}
		if r.take(s.id) != nil {
			s.finish(s.Accumulated(), err)
		}
	}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.cancel(ctx.Err())
			case <-s.done:
			}
		}()
	}

	if err := send(s.id); err != nil {
		if r.take(s.id) != nil {
			s.finish("", fmt.Errorf("send %s: %w", label, err))
		}
	}
	return s
}

// Chunk appends text to stream id.
func (r *Streams) Chunk(id, text string) bool {
	r.mu.Lock()
	s, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		r.cfg.logger.Debug("unmatched stream chunk", "bus", r.cfg.name, "key", id)
		return false
	}
	s.push(text)
	return true
}

// End settles stream id with the authoritative full text.
func (r *Streams) End(id, fullText string) bool {
	s := r.take(id)
	if s == nil {
		r.cfg.logger.Debug("unmatched stream end", "bus", r.cfg.name, "key", id)
		return false
	}
	return s.finish(fullText, nil)
}

// Fail settles stream id with the error reported by the host.
func (r *Streams) Fail(id, message string) bool {
	s := r.take(id)
	if s == nil {
		return false
	}
	return s.finish(s.Accumulated(), &RemoteError{Type: s.label, Message: message})
}

// Len returns the number of open streams.
func (r *Streams) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close fails every open stream with ErrClosed.
func (r *Streams) Close() {
	r.mu.Lock()
	r.closed = true
	pending := r.pending
	r.pending = make(map[string]*Stream)
	r.mu.Unlock()
	for _, s := range pending {
		s.finish(s.Accumulated(), fmt.Errorf("stream %s: %w", s.label, ErrClosed))
	}
}

func (r *Streams) take(id string) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.pending[id]
	if !ok {
		return nil
	}
	delete(r.pending, id)
	return s
}

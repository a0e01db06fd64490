package rpc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the ids handed to send.
type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) send(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func TestBus_ReverseOrderResolution(t *testing.T) {
	bus := rpc.NewBus[string]()
	rec := &recorder{}

	first := bus.Call("clipboard-read-text", rec.send)
	second := bus.Call("clipboard-read-text", rec.send)
	require.Len(t, rec.ids, 2)
	require.NotEqual(t, rec.ids[0], rec.ids[1])

	assert.True(t, bus.Resolve(rec.ids[1], "two"))
	assert.True(t, bus.Resolve(rec.ids[0], "one"))

	ctx := context.Background()
	v, err := first.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", v)
	v, err = second.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", v)
	assert.Zero(t, bus.Len())
}

func TestBus_TimeoutRemovesEntry(t *testing.T) {
	bus := rpc.NewBus[string](rpc.WithTimeout(10 * time.Millisecond))
	rec := &recorder{}

	f := bus.Call("clipboard-copy", rec.send)
	_, err := f.Await(context.Background())
	require.ErrorIs(t, err, rpc.ErrTimeout)
	assert.Contains(t, err.Error(), "request for clipboard-copy timed out")
	assert.False(t, bus.Has(rec.ids[0]))

	assert.False(t, bus.Resolve(rec.ids[0], "late"), "late response is a no-op")
	_, err = f.Result()
	assert.ErrorIs(t, err, rpc.ErrTimeout)
}

func TestBus_FirstSettlementWins(t *testing.T) {
	bus := rpc.NewBus[int]()
	rec := &recorder{}

	f := bus.Call("system-get-applications", rec.send)
	remote := &rpc.RemoteError{Type: "system-get-applications", Message: "denied"}
	assert.True(t, bus.Reject(rec.ids[0], remote))
	assert.False(t, bus.Resolve(rec.ids[0], 1))

	_, err := f.Await(context.Background())
	var re *rpc.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "denied", re.Error())
}

func TestBus_CancelIsIsolated(t *testing.T) {
	bus := rpc.NewBus[string]()
	rec := &recorder{}

	a := bus.Call("clipboard-read", rec.send)
	b := bus.Call("clipboard-read", rec.send)

	a.Cancel()
	_, err := a.Await(context.Background())
	assert.ErrorIs(t, err, rpc.ErrCanceled)
	assert.True(t, bus.Has(rec.ids[1]))

	require.True(t, bus.Resolve(rec.ids[1], "ok"))
	v, err := b.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestBus_AwaitContextCancels(t *testing.T) {
	bus := rpc.NewBus[string](rpc.WithTimeout(0))
	rec := &recorder{}

	f := bus.Call("get-selected-finder-items", rec.send)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, rpc.ErrCanceled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, bus.Len())
}

func TestBus_SendFailureRejects(t *testing.T) {
	bus := rpc.NewBus[string]()
	boom := errors.New("pipe closed")

	f := bus.Call("clipboard-clear", func(string) error { return boom })
	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, bus.Len())
}

func TestBus_DuplicateKeyFailsFast(t *testing.T) {
	bus := rpc.NewBus[string]()
	noop := func() error { return nil }

	first := bus.Expect("state-1", "oauth-authorize", time.Minute, noop)
	dup := bus.Expect("state-1", "oauth-authorize", time.Minute, noop)

	_, err := dup.Await(context.Background())
	assert.ErrorIs(t, err, rpc.ErrDuplicateKey)

	require.True(t, bus.Resolve("state-1", "code"))
	v, err := first.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "code", v)
}

func TestBus_NamespacesAreIndependent(t *testing.T) {
	shared := func() string { return "same" }
	requests := rpc.NewBus[string](rpc.WithIDGenerator(shared))
	states := rpc.NewBus[string]()

	r := requests.Call("oauth-get-tokens", func(string) error { return nil })
	s := states.Expect(shared(), "oauth-authorize", time.Minute, func() error { return nil })

	require.True(t, states.Resolve("same", "code"))
	assert.True(t, requests.Has("same"), "resolving a state leaves the request pending")

	v, err := s.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "code", v)

	require.True(t, requests.Resolve("same", "tokens"))
	v, err = r.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tokens", v)
}

func TestBus_CloseRejectsPending(t *testing.T) {
	bus := rpc.NewBus[string]()
	rec := &recorder{}

	f := bus.Call("clipboard-paste", rec.send)
	bus.Close()

	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, rpc.ErrClosed)

	late := bus.Call("clipboard-paste", rec.send)
	_, err = late.Await(context.Background())
	assert.ErrorIs(t, err, rpc.ErrClosed)
	assert.Len(t, rec.ids, 1, "closed bus sends nothing")
}

func TestPolicy_Normalize(t *testing.T) {
	p := rpc.Policy{Default: time.Second}.Normalize()
	assert.Equal(t, time.Second, p.Default)
	assert.Equal(t, rpc.InteractiveTimeout, p.Interactive)
	assert.Equal(t, rpc.SelectedTextTimeout, p.SelectedText)
}

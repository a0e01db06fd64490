package rpc_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreams_EndIsAuthoritative(t *testing.T) {
	streams := rpc.NewStreams()
	rec := &recorder{}

	s := streams.Open(context.Background(), "ai-ask-stream", rec.send)
	var seen []string
	s.OnChunk(func(text string) { seen = append(seen, text) })

	assert.True(t, streams.Chunk(s.ID(), "Hel"))
	assert.True(t, streams.Chunk(s.ID(), "lo"))
	assert.Equal(t, "Hello", s.Accumulated())
	assert.True(t, streams.End(s.ID(), "Hello, world"))

	full, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", full)
	assert.Equal(t, []string{"Hel", "lo"}, seen)
	assert.Zero(t, streams.Len())
	assert.False(t, streams.Chunk(s.ID(), "late"))
}

func TestStreams_ErrorPath(t *testing.T) {
	streams := rpc.NewStreams()
	s := streams.Open(context.Background(), "ai-ask-stream", func(string) error { return nil })

	require.True(t, streams.Fail(s.ID(), "quota exceeded"))
	_, err := s.Wait(context.Background())
	var re *rpc.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "quota exceeded", re.Message)
	assert.False(t, streams.End(s.ID(), "ignored"))
}

func TestStreams_ContextCancelRemovesEntry(t *testing.T) {
	streams := rpc.NewStreams()
	ctx, cancel := context.WithCancel(context.Background())

	s := streams.Open(ctx, "ai-ask-stream", func(string) error { return nil })
	other := streams.Open(context.Background(), "ai-ask-stream", func(string) error { return nil })
	streams.Chunk(s.ID(), "partial")
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("stream did not settle after cancel")
	}
	full, err := s.Wait(context.Background())
	assert.ErrorIs(t, err, rpc.ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "partial", full)

	assert.Equal(t, 1, streams.Len())
	assert.True(t, streams.End(other.ID(), "done"), "other streams are unaffected")
}

func TestStreams_Close(t *testing.T) {
	streams := rpc.NewStreams()
	s := streams.Open(context.Background(), "ai-ask-stream", func(string) error { return nil })
	streams.Close()

	_, err := s.Wait(context.Background())
	assert.ErrorIs(t, err, rpc.ErrClosed)
}

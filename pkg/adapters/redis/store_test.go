package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewFromClient(client, opts...), mr
}

func TestRedisStore_PreferenceContract(t *testing.T) {
	store, _ := newStore(t)
	tests.RunPreferenceStoreContract(t, store)
}

func TestRedisStore_TokenContract(t *testing.T) {
	store, _ := newStore(t)
	tests.RunTokenStoreContract(t, store)
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	store, mr := newStore(t, redis.WithPrefix("test:"), redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.SavePreferences(ctx, "greeter", map[string]any{"greeting": "hi"}))
	require.NoError(t, store.SaveTokens(ctx, "github", ports.Tokens{AccessToken: "a"}))

	assert.True(t, mr.Exists("test:prefs:greeter"))
	assert.True(t, mr.Exists("test:tokens:github"))
	assert.Equal(t, time.Minute, mr.TTL("test:prefs:greeter"))

	mr.FastForward(2 * time.Minute)
	_, err := store.LoadPreferences(ctx, "greeter")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = store.LoadTokens(ctx, "github")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

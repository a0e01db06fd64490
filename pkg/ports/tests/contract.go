package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPreferenceStoreContract runs a suite of tests to verify that a
// PreferenceStore implementation adheres to the interface contract.
func RunPreferenceStoreContract(t *testing.T, store ports.PreferenceStore) {
	t.Helper()
	ctx := context.Background()
	plugin := "contract-prefs-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		values := map[string]any{"greeting": "hi", "count": 42, "enabled": true}
		require.NoError(t, store.SavePreferences(ctx, plugin, values))

		loaded, err := store.LoadPreferences(ctx, plugin)
		require.NoError(t, err)
		assert.Equal(t, "hi", loaded["greeting"])
		assert.Equal(t, true, loaded["enabled"])
		// JSON-backed stores return numbers as float64.
		assert.EqualValues(t, 42, loaded["count"])
	})

	t.Run("Save Replaces", func(t *testing.T) {
		require.NoError(t, store.SavePreferences(ctx, plugin, map[string]any{"only": "this"}))
		loaded, err := store.LoadPreferences(ctx, plugin)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"only": "this"}, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadPreferences(ctx, "missing-"+plugin)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("Loaded Values Are Copies", func(t *testing.T) {
		require.NoError(t, store.SavePreferences(ctx, plugin, map[string]any{"k": "v"}))
		loaded, err := store.LoadPreferences(ctx, plugin)
		require.NoError(t, err)
		loaded["k"] = "mutated"

		again, err := store.LoadPreferences(ctx, plugin)
		require.NoError(t, err)
		assert.Equal(t, "v", again["k"])
	})

	t.Run("List", func(t *testing.T) {
		other := plugin + "-2"
		require.NoError(t, store.SavePreferences(ctx, other, map[string]any{}))
		defer func() { _ = store.DeletePreferences(ctx, other) }()

		names, err := store.ListPreferences(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, plugin)
		assert.Contains(t, names, other)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.DeletePreferences(ctx, plugin))
		_, err := store.LoadPreferences(ctx, plugin)
		assert.ErrorIs(t, err, ports.ErrNotFound)
		assert.NoError(t, store.DeletePreferences(ctx, plugin), "deleting twice is fine")

		names, err := store.ListPreferences(ctx)
		require.NoError(t, err)
		assert.NotContains(t, names, plugin)
	})
}

// RunTokenStoreContract runs a suite of tests to verify that a TokenStore
// implementation adheres to the interface contract.
func RunTokenStoreContract(t *testing.T, store ports.TokenStore) {
	t.Helper()
	ctx := context.Background()
	provider := "contract-tokens-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		tokens := ports.Tokens{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresIn:    3600,
			UpdatedAt:    "2026-01-02T03:04:05Z",
		}
		require.NoError(t, store.SaveTokens(ctx, provider, tokens))

		loaded, err := store.LoadTokens(ctx, provider)
		require.NoError(t, err)
		assert.Equal(t, tokens, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadTokens(ctx, "missing-"+provider)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.DeleteTokens(ctx, provider))
		_, err := store.LoadTokens(ctx, provider)
		assert.ErrorIs(t, err, ports.ErrNotFound)
		assert.NoError(t, store.DeleteTokens(ctx, provider))
	})
}

package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/lattice/pkg/ports"
)

// Store implements ports.PreferenceStore and ports.TokenStore in memory.
// Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	prefs  map[string]map[string]any
	tokens map[string]ports.Tokens
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		prefs:  make(map[string]map[string]any),
		tokens: make(map[string]ports.Tokens),
	}
}

// LoadPreferences returns a copy of the stored values.
func (s *Store) LoadPreferences(ctx context.Context, plugin string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.prefs[plugin]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return maps.Clone(values), nil
}

// SavePreferences stores a copy of values.
func (s *Store) SavePreferences(ctx context.Context, plugin string, values map[string]any) error {
	copied := maps.Clone(values)
	if copied == nil {
		copied = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[plugin] = copied
	return nil
}

// DeletePreferences removes the values for plugin.
func (s *Store) DeletePreferences(ctx context.Context, plugin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prefs, plugin)
	return nil
}

// ListPreferences returns the plugins with stored values, sorted.
func (s *Store) ListPreferences(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.prefs)), nil
}

// LoadTokens returns the stored token set.
func (s *Store) LoadTokens(ctx context.Context, provider string) (ports.Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens, ok := s.tokens[provider]
	if !ok {
		return ports.Tokens{}, ports.ErrNotFound
	}
	return tokens, nil
}

// SaveTokens stores tokens.
func (s *Store) SaveTokens(ctx context.Context, provider string, tokens ports.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[provider] = tokens
	return nil
}

// DeleteTokens removes the token set.
func (s *Store) DeleteTokens(ctx context.Context, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, provider)
	return nil
}

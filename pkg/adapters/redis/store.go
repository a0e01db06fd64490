package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/lattice/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// farFuture scores index members that never expire.
const farFuture = 4102444800 // 2100-01-01

// Store implements ports.PreferenceStore and ports.TokenStore using Redis.
// Each entry is a JSON string; preference entries are also indexed in a
// ZSET scored by expiry so List can prune lazily.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for stored entries.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "lattice:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) prefKey(plugin string) string {
	return s.prefix + "prefs:" + plugin
}

func (s *Store) prefIndexKey() string {
	return s.prefix + "prefs:index"
}

func (s *Store) tokenKey(provider string) string {
	return s.prefix + "tokens:" + provider
}

// LoadPreferences retrieves the values for plugin.
func (s *Store) LoadPreferences(ctx context.Context, plugin string) (map[string]any, error) {
	var values map[string]any
	if err := s.get(ctx, s.prefKey(plugin), &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// SavePreferences persists values and indexes plugin.
func (s *Store) SavePreferences(ctx context.Context, plugin string, values map[string]any) error {
	if values == nil {
		values = map[string]any{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.prefKey(plugin), data, s.ttl)
	pipe.ZAdd(ctx, s.prefIndexKey(), backend.Z{Score: score, Member: plugin})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save preferences to redis: %w", err)
	}
	return nil
}

// DeletePreferences removes the values and the index entry.
func (s *Store) DeletePreferences(ctx context.Context, plugin string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.prefKey(plugin))
	pipe.ZRem(ctx, s.prefIndexKey(), plugin)
	_, err := pipe.Exec(ctx)
	return err
}

// ListPreferences returns indexed plugins after dropping expired members.
func (s *Store) ListPreferences(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.prefIndexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired preferences: %w", err)
	}

	names, err := s.client.ZRange(ctx, s.prefIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	return names, nil
}

// LoadTokens retrieves the token set for provider.
func (s *Store) LoadTokens(ctx context.Context, provider string) (ports.Tokens, error) {
	var tokens ports.Tokens
	err := s.get(ctx, s.tokenKey(provider), &tokens)
	return tokens, err
}

// SaveTokens persists the token set for provider.
func (s *Store) SaveTokens(ctx context.Context, provider string, tokens ports.Tokens) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	if err := s.client.Set(ctx, s.tokenKey(provider), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save tokens to redis: %w", err)
	}
	return nil
}

// DeleteTokens removes the token set for provider.
func (s *Store) DeleteTokens(ctx context.Context, provider string) error {
	return s.client.Del(ctx, s.tokenKey(provider)).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return ports.ErrNotFound
		}
		return fmt.Errorf("failed to get from redis: %w", err)
	}
	if err := json.Unmarshal([]byte(val), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

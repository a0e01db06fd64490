// Package config loads the host configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/adapters/file"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/adapters/process"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/rpc"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "lattice.yaml"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the host configuration.
type Config struct {
	Plugin      process.Config `yaml:"plugin" json:"plugin"`
	Timeouts    Timeouts       `yaml:"timeouts" json:"timeouts"`
	Preferences Store          `yaml:"preferences" json:"preferences"`
	Tokens      Store          `yaml:"tokens" json:"tokens"`
	Metrics     Metrics        `yaml:"metrics" json:"metrics"`
	LogLevel    string         `yaml:"logLevel" json:"logLevel"`
}

// Timeouts are the capability timeout classes. Zero values use the
// built-in defaults.
type Timeouts struct {
	Default      Duration `yaml:"default" json:"default"`
	Interactive  Duration `yaml:"interactive" json:"interactive"`
	SelectedText Duration `yaml:"selectedText" json:"selectedText"`
}

// Policy returns the timeouts as an rpc.Policy.
func (t Timeouts) Policy() rpc.Policy {
	return rpc.Policy{
		Default:      time.Duration(t.Default),
		Interactive:  time.Duration(t.Interactive),
		SelectedText: time.Duration(t.SelectedText),
	}.Normalize()
}

// Store selects a persistence backend.
type Store struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
	Redis   Redis  `yaml:"redis" json:"redis"`
	// EncryptionKey is a base64 AES-256 key. When set, token sets are
	// sealed before they reach the backend. FallbackKeys still decrypt.
	EncryptionKey string   `yaml:"encryptionKey" json:"encryptionKey"`
	FallbackKeys  []string `yaml:"fallbackKeys" json:"fallbackKeys"`
}

// Redis configures the redis backend.
type Redis struct {
	Addr     string   `yaml:"addr" json:"addr"`
	Password string   `yaml:"password" json:"password"`
	DB       int      `yaml:"db" json:"db"`
	Prefix   string   `yaml:"prefix" json:"prefix"`
	TTL      Duration `yaml:"ttl" json:"ttl"`
}

// Metrics configures the debug HTTP server. An empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Duration is a time.Duration written as "5s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Preferences: Store{Backend: BackendMemory},
		Tokens:      Store{Backend: BackendMemory},
		LogLevel:    "info",
	}
}

// Load reads a YAML or JSON file, chosen by extension. A missing file
// yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks backend names and encryption keys.
func (c Config) Validate() error {
	for name, s := range map[string]Store{"preferences": c.Preferences, "tokens": c.Tokens} {
		switch s.Backend {
		case "", BackendMemory, BackendFile, BackendRedis:
		default:
			return fmt.Errorf("%s: unknown backend %q", name, s.Backend)
		}
		if s.Backend == BackendRedis && s.Redis.Addr == "" {
			return fmt.Errorf("%s: redis backend needs an addr", name)
		}
	}
	if _, err := c.Tokens.Seal(memory.NewStore()); err != nil {
		return fmt.Errorf("tokens: %w", err)
	}
	return nil
}

// Backend is a persistence adapter serving both stores.
type Backend interface {
	ports.PreferenceStore
	ports.TokenStore
	io.Closer
}

// Open builds the adapter s selects.
func (s Store) Open() Backend {
	switch s.Backend {
	case BackendFile:
		return nopCloser{file.New(s.Path)}
	case BackendRedis:
		var opts []redis.Option
		if s.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(s.Redis.Prefix))
		}
		if s.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(time.Duration(s.Redis.TTL)))
		}
		return redis.New(s.Redis.Addr, s.Redis.Password, s.Redis.DB, opts...)
	default:
		return nopCloser{memory.NewStore()}
	}
}

// Seal wraps next with token encryption when an EncryptionKey is set.
func (s Store) Seal(next ports.TokenStore) (ports.TokenStore, error) {
	if s.EncryptionKey == "" {
		return next, nil
	}
	cfg := middleware.EncryptionConfig{}
	var err error
	if cfg.ActiveKey, err = middleware.ParseKey(s.EncryptionKey); err != nil {
		return nil, fmt.Errorf("encryptionKey: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("fallbackKeys[%d]: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		return nil, err
	}
	return mw(next), nil
}

type store interface {
	ports.PreferenceStore
	ports.TokenStore
}

type nopCloser struct {
	store
}

func (nopCloser) Close() error { return nil }

package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/lattice/pkg/ports"
)

const (
	preferencesDir = "preferences"
	tokensDir      = "tokens"
)

// Store implements ports.PreferenceStore and ports.TokenStore on the local
// filesystem, one JSON document per key.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".lattice".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = ".lattice"
	}
	return &Store{BasePath: basePath}
}

// LoadPreferences reads the values stored for plugin.
func (s *Store) LoadPreferences(ctx context.Context, plugin string) (map[string]any, error) {
	var values map[string]any
	if err := s.read(preferencesDir, plugin, &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// SavePreferences writes values for plugin.
func (s *Store) SavePreferences(ctx context.Context, plugin string, values map[string]any) error {
	if values == nil {
		values = map[string]any{}
	}
	return s.write(preferencesDir, plugin, values)
}

// DeletePreferences removes the document for plugin.
func (s *Store) DeletePreferences(ctx context.Context, plugin string) error {
	return s.remove(preferencesDir, plugin)
}

// ListPreferences returns the plugins with a stored document, sorted.
func (s *Store) ListPreferences(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.BasePath, preferencesDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		names = append(names, key)
	}
	slices.Sort(names)
	return names, nil
}

// LoadTokens reads the token set stored for provider.
func (s *Store) LoadTokens(ctx context.Context, provider string) (ports.Tokens, error) {
	var tokens ports.Tokens
	err := s.read(tokensDir, provider, &tokens)
	return tokens, err
}

// SaveTokens writes the token set for provider.
func (s *Store) SaveTokens(ctx context.Context, provider string, tokens ports.Tokens) error {
	return s.write(tokensDir, provider, tokens)
}

// DeleteTokens removes the token document for provider.
func (s *Store) DeleteTokens(ctx context.Context, provider string) error {
	return s.remove(tokensDir, provider)
}

func (s *Store) path(dir, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	return filepath.Join(s.BasePath, dir, url.PathEscape(key)+".json"), nil
}

func (s *Store) read(dir, key string, v any) error {
	path, err := s.path(dir, key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ports.ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", dir, err)
	}
	return nil
}

// write replaces the document atomically: it writes a temporary file in
// the same directory, syncs it and renames it over the destination.
func (s *Store) write(dir, key string, v any) error {
	destPath, err := s.path(dir, key)
	if err != nil {
		return err
	}
	base := filepath.Dir(destPath)
	if err := os.MkdirAll(base, 0o700); err != nil {
		return fmt.Errorf("failed to ensure %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(base, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file or replace an existing one.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing %s file: %w", dir, err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *Store) remove(dir, key string) error {
	path, err := s.path(dir, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s file: %w", dir, err)
	}
	return nil
}

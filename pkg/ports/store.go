package ports

import (
	"context"
	"errors"
)

// ErrNotFound is returned when nothing is stored under a key.
var ErrNotFound = errors.New("ports: not found")

// PreferenceStore persists the preference values the host pushes to
// plugins, keyed by plugin name.
type PreferenceStore interface {
	// LoadPreferences returns the stored values for plugin.
	// Returns ErrNotFound if none were saved.
	LoadPreferences(ctx context.Context, plugin string) (map[string]any, error)

	// SavePreferences replaces the stored values for plugin.
	SavePreferences(ctx context.Context, plugin string, values map[string]any) error

	// DeletePreferences removes the values for plugin. Deleting a missing
	// entry is not an error.
	DeletePreferences(ctx context.Context, plugin string) error

	// ListPreferences returns the names of plugins with stored values.
	ListPreferences(ctx context.Context) ([]string, error)
}

// TokenStore persists OAuth token sets, keyed by provider id.
type TokenStore interface {
	// LoadTokens returns the stored token set for provider.
	// Returns ErrNotFound if none was saved.
	LoadTokens(ctx context.Context, provider string) (Tokens, error)

	// SaveTokens replaces the token set for provider.
	SaveTokens(ctx context.Context, provider string, tokens Tokens) error

	// DeleteTokens removes the token set for provider. Deleting a missing
	// entry is not an error.
	DeleteTokens(ctx context.Context, provider string) error
}

// Tokens is a stored token set in its wire form. UpdatedAt is an RFC 3339
// timestamp stamped by the plugin.
type Tokens struct {
	AccessToken  string `json:"accessToken" mapstructure:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty" mapstructure:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn,omitempty" mapstructure:"expiresIn"`
	Scope        string `json:"scope,omitempty" mapstructure:"scope"`
	IDToken      string `json:"idToken,omitempty" mapstructure:"idToken"`
	UpdatedAt    string `json:"updatedAt,omitempty" mapstructure:"updatedAt"`
}

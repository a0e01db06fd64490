package capability

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/google/uuid"
)

// RedirectMethod picks the redirect URI registered with the provider.
type RedirectMethod string

const (
	RedirectWeb    RedirectMethod = "web"
	RedirectApp    RedirectMethod = "app"
	RedirectAppURI RedirectMethod = "app-uri"
)

// expiryMargin is how early a token set counts as expired.
const expiryMargin = 60 * time.Second

const redirectPackage = "Extension"

// PKCEOptions identifies an OAuth provider.
type PKCEOptions struct {
	RedirectMethod RedirectMethod
	ProviderName   string
	ProviderIcon   string
	Description    string
	// ProviderID keys stored tokens. It defaults to the lower-cased,
	// dash-separated provider name.
	ProviderID string
}

// AuthorizationRequestOptions describes the provider's authorize endpoint.
type AuthorizationRequestOptions struct {
	Endpoint        string
	ClientID        string
	Scope           string
	ExtraParameters map[string]string
}

// AuthorizationRequest is a prepared PKCE authorization.
type AuthorizationRequest struct {
	URL           string
	CodeVerifier  string
	CodeChallenge string
	RedirectURI   string
	State         string
}

// TokenSet is a stored set of provider tokens.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is in seconds, counted from UpdatedAt.
	ExpiresIn int64
	Scope     string
	IDToken   string
	UpdatedAt time.Time
}

// IsExpired reports whether the access token expires within a minute of now.
// A token set without an expiry never expires.
func (t TokenSet) IsExpired(now time.Time) bool {
	if t.ExpiresIn <= 0 {
		return false
	}
	expiry := t.UpdatedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	return now.After(expiry.Add(-expiryMargin))
}

// TokenResponse is a provider's token endpoint response in its snake_case form.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`
}

// TokenSet converts the response into a TokenSet.
func (r TokenResponse) TokenSet() TokenSet {
	return TokenSet{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
		Scope:        r.Scope,
		IDToken:      r.IDToken,
	}
}

// PKCEClient runs OAuth authorization code flows with PKCE through the host.
type PKCEClient struct {
	c    *Client
	opts PKCEOptions
	now  func() time.Time
}

// PKCE returns an OAuth client for one provider.
func (c *Client) PKCE(opts PKCEOptions) *PKCEClient {
	return &PKCEClient{c: c, opts: opts, now: time.Now}
}

func (p *PKCEClient) providerID() string {
	if p.opts.ProviderID != "" {
		return p.opts.ProviderID
	}
	return strings.Join(strings.Fields(strings.ToLower(p.opts.ProviderName)), "-")
}

func (p *PKCEClient) redirectURI() string {
	switch p.opts.RedirectMethod {
	case RedirectApp:
		return "lattice://oauth?package_name=" + redirectPackage
	case RedirectAppURI:
		return "com.lattice:/oauth?package_name=" + redirectPackage
	default:
		return "https://lattice.invalid/redirect?packageName=" + redirectPackage
	}
}

// AuthorizationRequest prepares a verifier, challenge and state, and builds
// the provider URL.
func (p *PKCEClient) AuthorizationRequest(opts AuthorizationRequestOptions) (AuthorizationRequest, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return AuthorizationRequest{}, fmt.Errorf("generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	state, err := json.Marshal(map[string]string{
		"providerName": p.opts.ProviderName,
		"id":           uuid.NewString(),
		"flavor":       "release",
	})
	if err != nil {
		return AuthorizationRequest{}, err
	}

	redirect := p.redirectURI()
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", opts.ClientID)
	q.Set("scope", opts.Scope)
	q.Set("redirect_uri", redirect)
	q.Set("state", string(state))
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	for k, v := range opts.ExtraParameters {
		q.Set(k, v)
	}

	return AuthorizationRequest{
		URL:           opts.Endpoint + "?" + q.Encode(),
		CodeVerifier:  verifier,
		CodeChallenge: challenge,
		RedirectURI:   redirect,
		State:         string(state),
	}, nil
}

// Authorize asks the host to open the authorization URL and waits for the
// code to come back under the request's state. The wait uses the
// interactive deadline.
func (p *PKCEClient) Authorize(ctx context.Context, req AuthorizationRequest) (string, error) {
	state := req.State
	if state == "" {
		u, err := url.Parse(req.URL)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		state = u.Query().Get("state")
	}
	if state == "" {
		return "", fmt.Errorf("%w: state parameter is missing from the authorization request", ErrInvalidOptions)
	}

	payload := map[string]any{
		"url":          req.URL,
		"state":        state,
		"providerName": p.opts.ProviderName,
	}
	if p.opts.ProviderIcon != "" {
		payload["providerIcon"] = p.opts.ProviderIcon
	}
	if p.opts.Description != "" {
		payload["description"] = p.opts.Description
	}

	f := p.c.states.Expect(state, "oauth-authorize", p.c.policy.Interactive, func() error {
		return p.c.sender.Send(protocol.Message("oauth-authorize", payload))
	})
	return f.Await(ctx)
}

type storedTokens struct {
	AccessToken  string `mapstructure:"accessToken"`
	RefreshToken string `mapstructure:"refreshToken"`
	ExpiresIn    int64  `mapstructure:"expiresIn"`
	Scope        string `mapstructure:"scope"`
	IDToken      string `mapstructure:"idToken"`
	UpdatedAt    string `mapstructure:"updatedAt"`
}

// GetTokens returns the stored token set, or nil when none is stored.
func (p *PKCEClient) GetTokens(ctx context.Context) (*TokenSet, error) {
	result, err := p.c.request(ctx, "oauth-get-tokens", p.c.policy.Default, map[string]any{"providerId": p.providerID()})
	if err != nil || result == nil {
		return nil, err
	}
	var stored storedTokens
	if err := decodeResult("oauth-get-tokens", result, &stored); err != nil {
		return nil, err
	}
	set := TokenSet{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		ExpiresIn:    stored.ExpiresIn,
		Scope:        stored.Scope,
		IDToken:      stored.IDToken,
	}
	if stored.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, stored.UpdatedAt); err == nil {
			set.UpdatedAt = t
		}
	}
	return &set, nil
}

// SetTokens stores set, stamping it with the current time.
func (p *PKCEClient) SetTokens(ctx context.Context, set TokenSet) error {
	set.UpdatedAt = p.now().UTC()
	tokens := map[string]any{
		"accessToken": set.AccessToken,
		"updatedAt":   set.UpdatedAt.Format(time.RFC3339Nano),
	}
	if set.RefreshToken != "" {
		tokens["refreshToken"] = set.RefreshToken
	}
	if set.ExpiresIn > 0 {
		tokens["expiresIn"] = set.ExpiresIn
	}
	if set.Scope != "" {
		tokens["scope"] = set.Scope
	}
	if set.IDToken != "" {
		tokens["idToken"] = set.IDToken
	}
	return p.c.call(ctx, "oauth-set-tokens", map[string]any{
		"providerId": p.providerID(),
		"tokens":     tokens,
	}, nil)
}

// SetTokenResponse stores a raw token endpoint response.
func (p *PKCEClient) SetTokenResponse(ctx context.Context, resp TokenResponse) error {
	return p.SetTokens(ctx, resp.TokenSet())
}

// RemoveTokens deletes the stored token set.
func (p *PKCEClient) RemoveTokens(ctx context.Context) error {
	return p.c.call(ctx, "oauth-remove-tokens", map[string]any{"providerId": p.providerID()}, nil)
}

package capability_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/capability"
	"github.com/aretw0/lattice/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hostStub records what the client sends.
type hostStub struct {
	msgs chan map[string]any
}

func newHostStub() *hostStub {
	return &hostStub{msgs: make(chan map[string]any, 16)}
}

func (h *hostStub) Send(msg any) error {
	h.msgs <- msg.(map[string]any)
	return nil
}

func (h *hostStub) next(t *testing.T) (string, map[string]any) {
	t.Helper()
	select {
	case msg := <-h.msgs:
		payload, _ := msg["payload"].(map[string]any)
		return msg["type"].(string), payload
	case <-time.After(time.Second):
		t.Fatal("no message sent")
		return "", nil
	}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func respond(t *testing.T, c *capability.Client, typ string, id any, result any, errMsg string) {
	t.Helper()
	body := map[string]any{"requestId": id, "result": result}
	if errMsg != "" {
		body["error"] = errMsg
	}
	require.True(t, c.Deliver(typ+"-response", raw(t, body)))
}

type outcome[T any] struct {
	v   T
	err error
}

func async[T any](fn func() (T, error)) <-chan outcome[T] {
	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn()
		ch <- outcome[T]{v, err}
	}()
	return ch
}

func TestClipboard_ReadText(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)
	ctx := context.Background()

	res := async(func() (string, error) { return c.Clipboard().ReadText(ctx, 2) })
	typ, payload := host.next(t)
	assert.Equal(t, "clipboard-read-text", typ)
	assert.Equal(t, 2, payload["offset"])
	require.NotEmpty(t, payload["requestId"])

	respond(t, c, typ, payload["requestId"], map[string]any{"text": "hi"}, "")
	out := <-res
	require.NoError(t, out.err)
	assert.Equal(t, "hi", out.v)
	assert.Zero(t, c.Pending())
}

func TestClipboard_CopyConcealed(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)

	res := async(func() (struct{}, error) {
		return struct{}{}, c.Clipboard().Copy(context.Background(), capability.Text("secret"), capability.CopyOptions{Concealed: true})
	})
	typ, payload := host.next(t)
	assert.Equal(t, "clipboard-copy", typ)
	assert.Equal(t, map[string]any{"text": "secret"}, payload["content"])
	assert.Equal(t, map[string]any{"concealed": true}, payload["options"])

	respond(t, c, typ, payload["requestId"], nil, "")
	require.NoError(t, (<-res).err)
}

func TestSystem_RemoteError(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)

	res := async(func() (capability.Application, error) {
		return c.System().GetFrontmostApplication(context.Background())
	})
	typ, payload := host.next(t)
	respond(t, c, typ, payload["requestId"], nil, "not available on this platform")

	out := <-res
	var remote *rpc.RemoteError
	require.ErrorAs(t, out.err, &remote)
	assert.Equal(t, "system-get-frontmost-application", remote.Type)
	assert.Equal(t, "not available on this platform", remote.Error())
}

func TestSystem_GetApplicationsDecodes(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)

	res := async(func() ([]capability.Application, error) {
		return c.System().GetApplications(context.Background(), "")
	})
	typ, payload := host.next(t)
	_, hasPath := payload["path"]
	assert.False(t, hasPath)
	respond(t, c, typ, payload["requestId"], []map[string]any{
		{"name": "Files", "path": "/usr/bin/files", "bundleId": "org.files"},
	}, "")

	out := <-res
	require.NoError(t, out.err)
	assert.Equal(t, []capability.Application{{Name: "Files", Path: "/usr/bin/files", BundleID: "org.files"}}, out.v)
}

func TestEnvironment_SelectedTextTimesOut(t *testing.T) {
	host := newHostStub()
	c := capability.New(host, capability.WithPolicy(rpc.Policy{SelectedText: 10 * time.Millisecond}))

	_, err := c.Environment().GetSelectedText(context.Background())
	require.ErrorIs(t, err, rpc.ErrTimeout)
	assert.Contains(t, err.Error(), "request for get-selected-text timed out")
	assert.Zero(t, c.Pending())
}

func TestEnvironment_OpenIsFireAndForget(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)

	require.NoError(t, c.Environment().Open("https://example.com", ""))
	typ, payload := host.next(t)
	assert.Equal(t, "open", typ)
	assert.Equal(t, map[string]any{"target": "https://example.com"}, payload)

	require.NoError(t, c.ShowHUD("Copied"))
	typ, payload = host.next(t)
	assert.Equal(t, "SHOW_HUD", typ)
	assert.Equal(t, "Copied", payload["title"])
	assert.Zero(t, c.Pending())
}

func TestBrowserExtension(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)
	ctx := context.Background()

	_, err := c.BrowserExtension().GetContent(ctx, capability.ContentOptions{CSSSelector: "#main"})
	require.ErrorIs(t, err, capability.ErrInvalidOptions)
	assert.Empty(t, host.msgs, "rejected locally")

	res := async(func() ([]capability.Tab, error) { return c.BrowserExtension().GetTabs(ctx) })
	typ, payload := host.next(t)
	assert.Equal(t, "browser-extension-request", typ)
	assert.Equal(t, "getTabs", payload["method"])
	respond(t, c, typ, payload["requestId"], map[string]any{
		"value": []map[string]any{{"tabId": 7, "url": "https://go.dev", "active": true}},
	}, "")

	out := <-res
	require.NoError(t, out.err)
	assert.Equal(t, []capability.Tab{{ID: 7, URL: "https://go.dev", Active: true}}, out.v)

	content := async(func() (string, error) {
		return c.BrowserExtension().GetContent(ctx, capability.ContentOptions{CSSSelector: "h1", Format: capability.FormatText, TabID: 7})
	})
	typ, payload = host.next(t)
	assert.Equal(t, "getTab", payload["method"])
	assert.Equal(t, map[string]any{"field": "text", "selector": "h1", "tabId": int64(7)}, payload["params"])
	respond(t, c, typ, payload["requestId"], map[string]any{"value": "Title"}, "")
	assert.Equal(t, "Title", (<-content).v)
}

func TestPKCE_AuthorizationRequest(t *testing.T) {
	c := capability.New(newHostStub())
	pkce := c.PKCE(capability.PKCEOptions{RedirectMethod: capability.RedirectApp, ProviderName: "Git Hub"})

	req, err := pkce.AuthorizationRequest(capability.AuthorizationRequestOptions{
		Endpoint: "https://auth.example.com/authorize",
		ClientID: "client",
		Scope:    "repo",
	})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(req.CodeVerifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), req.CodeChallenge)
	assert.Len(t, req.CodeVerifier, 43)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, req.CodeChallenge, q.Get("code_challenge"))
	assert.Equal(t, req.State, q.Get("state"))
	assert.Equal(t, req.RedirectURI, q.Get("redirect_uri"))

	var state map[string]string
	require.NoError(t, json.Unmarshal([]byte(req.State), &state))
	assert.Equal(t, "Git Hub", state["providerName"])
	assert.Equal(t, "release", state["flavor"])
	assert.NotEmpty(t, state["id"])
}

func TestPKCE_AuthorizeCorrelatesByState(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)
	pkce := c.PKCE(capability.PKCEOptions{ProviderName: "Example"})
	req, err := pkce.AuthorizationRequest(capability.AuthorizationRequestOptions{Endpoint: "https://auth.example.com"})
	require.NoError(t, err)

	res := async(func() (string, error) { return pkce.Authorize(context.Background(), req) })
	typ, payload := host.next(t)
	assert.Equal(t, "oauth-authorize", typ)
	assert.Equal(t, req.URL, payload["url"])

	// A request-namespace response with the state as its id is not a match.
	c.Deliver("oauth-get-tokens-response", raw(t, map[string]any{"requestId": req.State, "result": "nope"}))

	require.True(t, c.Deliver(capability.ActionOAuthResponse, raw(t, map[string]any{"state": req.State, "code": "abc"})))
	out := <-res
	require.NoError(t, out.err)
	assert.Equal(t, "abc", out.v)
}

func TestPKCE_Tokens(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)
	pkce := c.PKCE(capability.PKCEOptions{ProviderName: "My Provider"})
	ctx := context.Background()

	set := async(func() (struct{}, error) {
		return struct{}{}, pkce.SetTokenResponse(ctx, capability.TokenResponse{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600})
	})
	typ, payload := host.next(t)
	assert.Equal(t, "oauth-set-tokens", typ)
	assert.Equal(t, "my-provider", payload["providerId"])
	tokens := payload["tokens"].(map[string]any)
	assert.Equal(t, "at", tokens["accessToken"])
	assert.Equal(t, "rt", tokens["refreshToken"])
	assert.Equal(t, int64(3600), tokens["expiresIn"])
	assert.NotEmpty(t, tokens["updatedAt"])
	respond(t, c, typ, payload["requestId"], nil, "")
	require.NoError(t, (<-set).err)

	get := async(func() (*capability.TokenSet, error) { return pkce.GetTokens(ctx) })
	typ, payload = host.next(t)
	respond(t, c, typ, payload["requestId"], map[string]any{
		"accessToken": "at",
		"expiresIn":   3600,
		"updatedAt":   "2026-01-02T03:04:05Z",
	}, "")
	out := <-get
	require.NoError(t, out.err)
	require.NotNil(t, out.v)
	assert.Equal(t, "at", out.v.AccessToken)
	assert.Equal(t, int64(3600), out.v.ExpiresIn)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), out.v.UpdatedAt.UTC())

	missing := async(func() (*capability.TokenSet, error) { return pkce.GetTokens(ctx) })
	typ, payload = host.next(t)
	respond(t, c, typ, payload["requestId"], nil, "")
	out = <-missing
	require.NoError(t, out.err)
	assert.Nil(t, out.v)
}

func TestTokenSet_IsExpired(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	set := capability.TokenSet{AccessToken: "x", ExpiresIn: 120, UpdatedAt: at}

	assert.False(t, set.IsExpired(at.Add(30*time.Second)))
	assert.True(t, set.IsExpired(at.Add(61*time.Second)), "expired a minute early")
	assert.False(t, capability.TokenSet{AccessToken: "x"}.IsExpired(at.Add(24*time.Hour)))
}

func TestAsk_Streams(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)

	stream := c.Ask(context.Background(), "hello?", capability.AskOptions{Model: "fast"})
	var chunks []string
	stream.OnChunk(func(s string) { chunks = append(chunks, s) })

	typ, payload := host.next(t)
	assert.Equal(t, "ai-ask-stream", typ)
	assert.Equal(t, "hello?", payload["prompt"])
	assert.Equal(t, stream.ID(), payload["requestId"])

	c.Deliver(capability.ActionStreamChunk, raw(t, map[string]any{"requestId": stream.ID(), "text": "hi "}))
	c.Deliver(capability.ActionStreamChunk, raw(t, map[string]any{"requestId": stream.ID(), "text": "there"}))
	c.Deliver(capability.ActionStreamEnd, raw(t, map[string]any{"requestId": stream.ID(), "fullText": "hi there!"}))

	full, err := stream.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi there!", full)
	assert.Equal(t, []string{"hi ", "there"}, chunks)
}

func TestToast_Lifecycle(t *testing.T) {
	host := newHostStub()
	var ids atomic.Int64
	ids.Store(100)
	c := capability.New(host, capability.WithInstanceIDs(func() int64 { return ids.Add(1) }))

	var pressed *capability.Toast
	toast, err := c.ShowToast(capability.ToastOptions{
		Style: capability.ToastAnimated,
		Title: "Working",
		PrimaryAction: &capability.ToastAction{
			Title:    "Undo",
			OnAction: func(t *capability.Toast) { pressed = t },
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(101), toast.ID())

	typ, payload := host.next(t)
	assert.Equal(t, "SHOW_TOAST", typ)
	assert.Equal(t, "ANIMATED", payload["style"])
	assert.Equal(t, map[string]any{"title": "Undo", "onAction": true}, payload["primaryAction"])

	fn, ok := c.ToastHandler(101, capability.HandlerPrimaryAction)
	require.True(t, ok)
	fn()
	assert.Same(t, toast, pressed)
	_, ok = c.ToastHandler(101, capability.HandlerSecondaryAction)
	assert.False(t, ok)

	require.NoError(t, toast.SetTitle("Done"))
	typ, payload = host.next(t)
	assert.Equal(t, "UPDATE_TOAST", typ)
	assert.Equal(t, "Done", payload["title"])

	require.NoError(t, toast.Hide())
	typ, _ = host.next(t)
	assert.Equal(t, "HIDE_TOAST", typ)
	_, ok = c.ToastHandler(101, capability.HandlerPrimaryAction)
	assert.False(t, ok)
}

func TestDeliver_IgnoresForeignActions(t *testing.T) {
	c := capability.New(newHostStub())
	assert.False(t, c.Deliver("run-plugin", raw(t, map[string]any{})))
	assert.True(t, c.Deliver("clipboard-copy-response", raw(t, map[string]any{"requestId": "unknown"})))
}

func TestClose_RejectsPending(t *testing.T) {
	host := newHostStub()
	c := capability.New(host)

	res := async(func() (string, error) { return c.Clipboard().ReadText(context.Background(), 0) })
	host.next(t)
	c.Close()
	assert.ErrorIs(t, (<-res).err, rpc.ErrClosed)
}

package host_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/capability"
	"github.com/aretw0/lattice/pkg/host"
	"github.com/aretw0/lattice/pkg/hoststore"
	"github.com/aretw0/lattice/pkg/plugin"
	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/aretw0/lattice/pkg/transport"
	"github.com/aretw0/lattice/pkg/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// connect wires a host session to an in-process plugin runtime.
func connect(t *testing.T, plugins []plugin.Plugin, opts ...host.Option) *host.Session {
	t.Helper()
	reg := plugin.NewRegistry()
	for _, p := range plugins {
		require.NoError(t, reg.Register(p))
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	rt := plugin.New(reg, inR, outW, plugin.WithLogger(logging.NewNop()))
	sess := host.New(outR, inW, append([]host.Option{host.WithLogger(logging.NewNop())}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = rt.Run(ctx)
		outW.Close()
	}()
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	t.Cleanup(func() {
		inW.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("session did not stop")
		}
		cancel()
	})
	return sess
}

// recorder is an Executor and Streamer that records requests.
type recorder struct {
	mu   sync.Mutex
	reqs []host.Request
	fn   func(req host.Request) (any, error)
}

func (r *recorder) Execute(_ context.Context, req host.Request) (any, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	if r.fn != nil {
		return r.fn(req)
	}
	return nil, nil
}

func (r *recorder) Stream(_ context.Context, req host.Request, emit func(string)) (string, error) {
	prompt, _ := req.Payload["prompt"].(string)
	if prompt == "fail" {
		return "", errors.New("model unavailable")
	}
	emit("Hel")
	emit("lo")
	return "Hello", nil
}

func (r *recorder) requests(typ string) []host.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []host.Request
	for _, req := range r.reqs {
		if req.Type == typ {
			out = append(out, req)
		}
	}
	return out
}

func menuPlugin(picked chan<- string) plugin.Plugin {
	return plugin.Plugin{
		Name: "menu",
		Commands: []plugin.Command{{
			Name: "index",
			View: func(app *plugin.App) ui.Component {
				return ui.Static(ui.List(nil,
					ui.ListItem(ui.Props{
						"title":   "A",
						"actions": ui.ActionPanel(ui.Action("Pick A", func() { picked <- "a" })),
					}),
					ui.ListItem(ui.Props{
						"title": "B",
						"actions": ui.ActionPanel(
							ui.CopyToClipboard("Copy B", "bee"),
							ui.Action("Pick B", func() { picked <- "b" }),
						),
					}),
				))
			},
		}},
	}
}

func noView(name string, run func(ctx context.Context, app *plugin.App) error) plugin.Plugin {
	return plugin.Plugin{
		Name:     name,
		Commands: []plugin.Command{{Name: "run", Mode: plugin.ModeNoView, Run: run}},
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting")
		var zero T
		return zero
	}
}

func TestSession_RendersAndExecutesActions(t *testing.T) {
	picked := make(chan string, 4)
	exec := &recorder{}
	sess := connect(t, []plugin.Plugin{menuPlugin(picked)}, host.WithExecutor(exec))

	require.NoError(t, sess.RunPlugin(context.Background(), host.RunRequest{PluginName: "menu", CommandName: "index"}))
	require.Eventually(t, func() bool { return len(sess.Snapshot().Items) == 2 }, waitFor, 5*time.Millisecond)

	snap := sess.Snapshot()
	top, ok := snap.TopLevel()
	require.True(t, ok)
	assert.Equal(t, ui.KindList, top.Kind)
	first, _ := snap.Node(snap.Selected)
	assert.Equal(t, "A", first.Title())

	require.NoError(t, sess.ExecutePrimary(context.Background()))
	assert.Equal(t, "a", receive(t, picked))
	assert.ErrorIs(t, sess.ExecuteSecondary(context.Background()), host.ErrNoAction)

	next := sess.SelectNext()
	second, _ := next.Node(next.Selected)
	assert.Equal(t, "B", second.Title())

	require.NoError(t, sess.ExecutePrimary(context.Background()))
	copies := exec.requests("clipboard-copy")
	require.Len(t, copies, 1)
	assert.Equal(t, map[string]any{"text": "bee"}, copies[0].Payload["content"])

	require.NoError(t, sess.ExecuteSecondary(context.Background()))
	assert.Equal(t, "b", receive(t, picked))
}

func TestSession_SubscribeAndGoBack(t *testing.T) {
	sess := connect(t, []plugin.Plugin{menuPlugin(make(chan string, 4))})

	snaps := make(chan *hoststore.Snapshot, 16)
	unsubscribe := sess.Subscribe(func(s *hoststore.Snapshot) { snaps <- s })
	defer unsubscribe()

	require.NoError(t, sess.RunPlugin(context.Background(), host.RunRequest{PluginName: "menu", CommandName: "index"}))
	reset := receive(t, snaps)
	assert.Zero(t, reset.Root)
	rendered := receive(t, snaps)
	assert.Len(t, rendered.Items, 2)
	assert.Greater(t, rendered.Version, reset.Version)

	require.NoError(t, sess.GoBack())
	assert.Zero(t, receive(t, snaps).Root)
	require.Eventually(t, func() bool {
		s := sess.Snapshot()
		return s.Root == 0 && len(s.Nodes) == 0
	}, waitFor, 5*time.Millisecond, "plugin clears its container")
}

func TestSession_ServesCapabilityRequests(t *testing.T) {
	exec := &recorder{fn: func(req host.Request) (any, error) {
		switch req.Type {
		case "clipboard-read-text":
			return map[string]any{"text": "from host"}, nil
		case "clipboard-clear":
			return nil, errors.New("clipboard locked")
		}
		return nil, host.ErrUnsupported
	}}
	results := make(chan string, 2)
	errs := make(chan error, 1)
	p := noView("caps", func(ctx context.Context, app *plugin.App) error {
		text, err := app.Capabilities().Clipboard().ReadText(ctx, 0)
		if err != nil {
			return err
		}
		results <- text
		errs <- app.Capabilities().Clipboard().Clear(ctx)
		return nil
	})
	sess := connect(t, []plugin.Plugin{p}, host.WithExecutor(exec))

	require.NoError(t, sess.RunPlugin(context.Background(), host.RunRequest{PluginName: "caps", CommandName: "run"}))
	assert.Equal(t, "from host", receive(t, results))
	err := receive(t, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clipboard locked")

	reads := exec.requests("clipboard-read-text")
	require.Len(t, reads, 1)
	assert.NotEmpty(t, reads[0].ID)
}

func TestSession_NoExecutor(t *testing.T) {
	errs := make(chan error, 1)
	p := noView("caps", func(ctx context.Context, app *plugin.App) error {
		_, err := app.Capabilities().System().GetFrontmostApplication(ctx)
		errs <- err
		return nil
	})
	sess := connect(t, []plugin.Plugin{p})

	require.NoError(t, sess.RunPlugin(context.Background(), host.RunRequest{PluginName: "caps", CommandName: "run"}))
	err := receive(t, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no executor")
}

func TestSession_StreamsAnswers(t *testing.T) {
	type answer struct {
		chunks []string
		full   string
		err    error
	}
	answers := make(chan answer, 2)
	p := noView("ai", func(ctx context.Context, app *plugin.App) error {
		for _, prompt := range []string{"hi", "fail"} {
			var mu sync.Mutex
			var chunks []string
			stream := app.Capabilities().Ask(ctx, prompt, capability.AskOptions{})
			stream.OnChunk(func(text string) {
				mu.Lock()
				chunks = append(chunks, text)
				mu.Unlock()
			})
			full, err := stream.Wait(ctx)
			mu.Lock()
			answers <- answer{chunks: chunks, full: full, err: err}
			mu.Unlock()
		}
		return nil
	})
	sess := connect(t, []plugin.Plugin{p}, host.WithExecutor(&recorder{}))

	require.NoError(t, sess.RunPlugin(context.Background(), host.RunRequest{PluginName: "ai", CommandName: "run"}))
	ok := receive(t, answers)
	require.NoError(t, ok.err)
	assert.Equal(t, "Hello", ok.full)

	failed := receive(t, answers)
	require.Error(t, failed.err)
	assert.Contains(t, failed.err.Error(), "model unavailable")
}

func TestSession_ToastActions(t *testing.T) {
	clicked := make(chan string, 1)
	p := noView("toast", func(ctx context.Context, app *plugin.App) error {
		_, err := app.Capabilities().ShowToast(capability.ToastOptions{
			Title: "Saved",
			PrimaryAction: &capability.ToastAction{
				Title:    "Undo",
				OnAction: func(*capability.Toast) { clicked <- "undo" },
			},
		})
		return err
	})
	sess := connect(t, []plugin.Plugin{p})

	require.NoError(t, sess.RunPlugin(context.Background(), host.RunRequest{PluginName: "toast", CommandName: "run"}))
	require.Eventually(t, func() bool { return len(sess.Snapshot().Toasts) == 1 }, waitFor, 5*time.Millisecond)

	var id int64
	for tid, toast := range sess.Snapshot().Toasts {
		id = tid
		assert.Equal(t, "Saved", toast.Title)
	}
	assert.ErrorIs(t, sess.TriggerToastAction(id, true), host.ErrNoAction)
	require.NoError(t, sess.TriggerToastAction(id, false))
	assert.Equal(t, "undo", receive(t, clicked))
}

func TestSession_PreferencesAreStoredAndPushed(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.SavePreferences(context.Background(), "prefs", map[string]any{"unit": "metric", "limit": 5}))

	seen := make(chan map[string]any, 2)
	p := noView("prefs", func(ctx context.Context, app *plugin.App) error {
		seen <- app.Preferences()
		return nil
	})
	sess := connect(t, []plugin.Plugin{p}, host.WithPreferenceStore(store))

	err := sess.RunPlugin(context.Background(), host.RunRequest{
		PluginName:  "prefs",
		CommandName: "run",
		Preferences: map[string]any{"limit": 10},
	})
	require.NoError(t, err)
	prefs := receive(t, seen)
	assert.Equal(t, "metric", prefs["unit"])
	assert.EqualValues(t, 10, prefs["limit"], "explicit values override stored ones")

	require.NoError(t, sess.SetPreferences(context.Background(), "prefs", map[string]any{"unit": "imperial"}))
	saved, err := store.LoadPreferences(context.Background(), "prefs")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"unit": "imperial"}, saved)
}

type countingObserver struct {
	mu        sync.Mutex
	batches   int
	unknown   []string
	logs      int
	outcomes  map[string]string
	frameErrs int
}

func (o *countingObserver) FrameError() {
	o.mu.Lock()
	o.frameErrs++
	o.mu.Unlock()
}

func (o *countingObserver) BatchApplied([]protocol.Command) {
	o.mu.Lock()
	o.batches++
	o.mu.Unlock()
}

func (o *countingObserver) UnknownCommand(typ string) {
	o.mu.Lock()
	o.unknown = append(o.unknown, typ)
	o.mu.Unlock()
}

func (o *countingObserver) PluginLog() {
	o.mu.Lock()
	o.logs++
	o.mu.Unlock()
}

func (o *countingObserver) CapabilityServed(typ, outcome string, _ time.Duration) {
	o.mu.Lock()
	o.outcomes[typ] = outcome
	o.mu.Unlock()
}

type counts struct {
	batches, logs, frameErrs int
	unknown                  []string
}

func (o *countingObserver) counts() counts {
	o.mu.Lock()
	defer o.mu.Unlock()
	return counts{batches: o.batches, logs: o.logs, frameErrs: o.frameErrs, unknown: slices.Clone(o.unknown)}
}

// frames feeds raw plugin frames to a session with no plugin attached.
func frames(t *testing.T, msgs ...any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := transport.NewWriter(&buf)
	for _, m := range msgs {
		require.NoError(t, w.Send(m))
	}
	return &buf
}

func TestSession_RoutesRawFrames(t *testing.T) {
	in := frames(t,
		protocol.Batch([]protocol.Command{
			protocol.CreateInstance{ID: 1, Kind: ui.KindDetail, Props: map[string]any{"markdown": "# Hi"}},
			protocol.AppendChild{ParentID: protocol.Root, ChildID: 1},
		}),
		protocol.Message("MYSTERY", map[string]any{}),
		protocol.Message(string(protocol.TypeUpdateText), map[string]any{"id": 1}),
		protocol.Log("hello from plugin"),
		protocol.Message(protocol.MessageBatchUpdate, []any{
			map[string]any{"type": "TELEPORT", "payload": map[string]any{}},
		}),
	)
	obs := &countingObserver{outcomes: map[string]string{}}
	var out bytes.Buffer
	sess := host.New(in, &out, host.WithObserver(obs))

	require.NoError(t, sess.Run(context.Background()))

	top, ok := sess.Snapshot().TopLevel()
	require.True(t, ok)
	assert.Equal(t, "# Hi", top.Props["markdown"])

	got := obs.counts()
	assert.Equal(t, 2, got.batches)
	assert.Equal(t, []string{"TELEPORT"}, got.unknown)
	assert.Equal(t, 1, got.logs)
	assert.Equal(t, 1, got.frameErrs, "UPDATE_TEXT without text is malformed")
}

func TestSession_ReportsPluginErrors(t *testing.T) {
	in := frames(t, protocol.Message(protocol.MessageError, "boom"))
	var reported []string
	sess := host.New(in, io.Discard, host.WithErrorHandler(func(msg string) { reported = append(reported, msg) }))

	require.NoError(t, sess.Run(context.Background()))
	assert.Equal(t, []string{"boom"}, reported)
}

func TestSession_AuthorizeWithoutAuthorizer(t *testing.T) {
	in := frames(t, protocol.Message("oauth-authorize", map[string]any{
		"url":          "https://example.com/auth",
		"state":        "s-1",
		"providerName": "Example",
	}))
	var out bytes.Buffer
	sess := host.New(in, &out)
	require.NoError(t, sess.Run(context.Background()))

	ins, err := transport.NewLineReader(&out).Next()
	require.NoError(t, err)
	assert.Equal(t, capability.ActionOAuthResponse, ins.Action)
	var resp map[string]any
	require.NoError(t, ins.Decode(&resp))
	assert.Equal(t, "s-1", resp["state"])
	assert.Contains(t, resp["error"], "not supported")
}

type authorizerFunc func(ctx context.Context, req host.AuthorizeRequest) error

func (f authorizerFunc) Authorize(ctx context.Context, req host.AuthorizeRequest) error {
	return f(ctx, req)
}

func TestSession_AuthorizeDelegates(t *testing.T) {
	in := frames(t, protocol.Message("oauth-authorize", map[string]any{
		"url":          "https://example.com/auth",
		"state":        "s-2",
		"providerName": "Example",
	}))
	var got host.AuthorizeRequest
	sess := host.New(in, io.Discard, host.WithAuthorizer(authorizerFunc(func(_ context.Context, req host.AuthorizeRequest) error {
		got = req
		return nil
	})))
	require.NoError(t, sess.Run(context.Background()))
	assert.Equal(t, host.AuthorizeRequest{URL: "https://example.com/auth", State: "s-2", ProviderName: "Example"}, got)
}

func TestSession_HandleDeepLink(t *testing.T) {
	tests := []struct {
		name string
		link string
		want map[string]any
		err  error
	}{
		{
			name: "Code",
			link: "lattice://oauth?code=abc&state=s-1",
			want: map[string]any{"state": "s-1", "code": "abc"},
		},
		{
			name: "App URI",
			link: "com.lattice:/oauth?code=xyz&state=s-2",
			want: map[string]any{"state": "s-2", "code": "xyz"},
		},
		{
			name: "Provider Error",
			link: "lattice://oauth?state=s-3&error=access_denied&error_description=nope",
			want: map[string]any{"state": "s-3", "error": "access_denied: nope"},
		},
		{name: "Missing State", link: "lattice://oauth?code=abc", err: host.ErrBadDeepLink},
		{name: "Other Path", link: "lattice://settings?state=s", err: host.ErrBadDeepLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			sess := host.New(strings.NewReader(""), &out)
			err := sess.HandleDeepLink(tt.link)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Zero(t, out.Len())
				return
			}
			require.NoError(t, err)
			ins, err := transport.NewLineReader(&out).Next()
			require.NoError(t, err)
			assert.Equal(t, capability.ActionOAuthResponse, ins.Action)
			var resp map[string]any
			require.NoError(t, ins.Decode(&resp))
			assert.Equal(t, tt.want, resp)
		})
	}
}

func TestSession_Instructions(t *testing.T) {
	var out bytes.Buffer
	sess := host.New(strings.NewReader(""), &out)

	require.NoError(t, sess.Dispatch(7, "onChange", "x"))
	require.NoError(t, sess.PopView())
	require.NoError(t, sess.SendPluginList(nil))

	lines := transport.NewLineReader(&out)
	ins, err := lines.Next()
	require.NoError(t, err)
	var ev plugin.EventPayload
	require.NoError(t, ins.Decode(&ev))
	assert.Equal(t, plugin.EventPayload{InstanceID: 7, HandlerName: "onChange", Args: []any{"x"}}, ev)

	ins, err = lines.Next()
	require.NoError(t, err)
	assert.Equal(t, plugin.ActionPopView, ins.Action)

	ins, err = lines.Next()
	require.NoError(t, err)
	var list plugin.PluginListPayload
	require.NoError(t, ins.Decode(&list))
	assert.Equal(t, plugin.ActionPluginList, ins.Action)
	assert.NotNil(t, list.Plugins)
}

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/host"
	"github.com/aretw0/lattice/pkg/hoststore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeControls struct {
	calls []string
	snap  *hoststore.Snapshot
	err   error
}

func (f *fakeControls) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeControls) Snapshot() *hoststore.Snapshot { return f.snap }

func (f *fakeControls) SelectNext() *hoststore.Snapshot {
	f.record("next")
	return f.snap
}

func (f *fakeControls) SelectPrev() *hoststore.Snapshot {
	f.record("prev")
	return f.snap
}

func (f *fakeControls) ExecutePrimary(context.Context) error   { return f.record("primary") }
func (f *fakeControls) ExecuteSecondary(context.Context) error { return f.record("secondary") }
func (f *fakeControls) PopView() error                         { return f.record("pop") }
func (f *fakeControls) GoBack() error                          { return f.record("back") }
func (f *fakeControls) HandleDeepLink(raw string) error        { return f.record("link " + raw) }

func (f *fakeControls) TriggerToastAction(id int64, secondary bool) error {
	if secondary {
		return f.record("toast-secondary")
	}
	return f.record("toast-primary")
}

func (f *fakeControls) RunPlugin(_ context.Context, req host.RunRequest) error {
	return f.record("run " + req.PluginName + "/" + req.CommandName)
}

func newTestController() (*Controller, *fakeControls, *bytes.Buffer) {
	store := hoststore.New()
	fake := &fakeControls{snap: store.Snapshot()}
	var out bytes.Buffer
	return NewController(fake, tui.NewPrinter(&out), &out, "demo"), fake, &out
}

func TestController_Handle(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		line string
		call string
	}{
		{"", "primary"},
		{"s", "secondary"},
		{"j", "next"},
		{"k", "prev"},
		{"b", "pop"},
		{"g", "back"},
		{"run counter", "run demo/counter"},
		{"link lattice://oauth?code=c&state=s", "link lattice://oauth?code=c&state=s"},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			c, fake, _ := newTestController()
			quit, err := c.Handle(ctx, tt.line)
			require.NoError(t, err)
			assert.False(t, quit)
			assert.Equal(t, []string{tt.call}, fake.calls)
		})
	}
}

func TestController_Errors(t *testing.T) {
	ctx := context.Background()
	c, fake, _ := newTestController()

	_, err := c.Handle(ctx, "teleport")
	assert.ErrorIs(t, err, ErrUnknownInput)

	_, err = c.Handle(ctx, "run")
	assert.ErrorContains(t, err, "missing command")

	_, err = c.Handle(ctx, "t")
	assert.ErrorContains(t, err, "no toast")

	fake.err = host.ErrNoAction
	_, err = c.Handle(ctx, "")
	assert.ErrorIs(t, err, host.ErrNoAction)
}

func TestController_Toasts(t *testing.T) {
	c, fake, _ := newTestController()
	fake.snap = &hoststore.Snapshot{Toasts: map[int64]*hoststore.Toast{
		3: {ID: 3},
		9: {ID: 9},
	}}
	_, err := c.Handle(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"toast-secondary"}, fake.calls)

	id, ok := newestToast(fake.snap)
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
}

func TestController_Loop(t *testing.T) {
	c, fake, out := newTestController()
	input := strings.NewReader("j\nbogus\np\nq\nj\n")

	require.NoError(t, c.Loop(context.Background(), input))
	assert.Equal(t, []string{"next"}, fake.calls, "lines after q are not read")
	assert.Contains(t, out.String(), ">>> Error: unknown input")
	assert.Contains(t, out.String(), "# Tree v0")
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(context.Canceled))
	assert.NoError(t, handleExecutionError(nil))
	assert.Error(t, handleExecutionError(assert.AnError))
}

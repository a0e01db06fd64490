package plugin

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/aretw0/lattice/pkg/capability"
	"github.com/aretw0/lattice/pkg/ui"
)

// App is the handle a running command uses to reach its runtime.
//
// Push, Pop and Update may be called from any goroutine. They are queued
// onto the UI loop and take effect after the current task returns.
type App struct {
	rt      *Runtime
	plugin  Plugin
	command Command
	mode    Mode
	prefs   map[string]any

	// UI goroutine only.
	root  ui.Component
	stack []ui.Component
}

// Context is canceled when the runtime stops.
func (a *App) Context() context.Context {
	return a.rt.ctx
}

// Logger returns the runtime logger scoped to this command.
func (a *App) Logger() *slog.Logger {
	return a.rt.logger.With("plugin", a.plugin.Name, "command", a.command.Name)
}

// Capabilities returns the host capability client.
func (a *App) Capabilities() *capability.Client {
	return a.rt.caps
}

// PluginName returns the name of the running plugin.
func (a *App) PluginName() string {
	return a.plugin.Name
}

// CommandName returns the name of the running command.
func (a *App) CommandName() string {
	return a.command.Name
}

// Mode returns the command's presentation mode.
func (a *App) Mode() Mode {
	return a.mode
}

// Preferences returns a copy of the effective preference values: host
// values merged over declared defaults. View commands must call it from UI
// code such as render functions and handlers; a no-view Run may call it
// from anywhere.
func (a *App) Preferences() map[string]any {
	return maps.Clone(a.prefs)
}

// Preference returns one effective preference value under the same rules
// as Preferences.
func (a *App) Preference(name string) (any, bool) {
	v, ok := a.prefs[name]
	return v, ok
}

// Plugins returns the plugin list last announced by the host. Only call it
// from UI code.
func (a *App) Plugins() []Info {
	return slices.Clone(a.rt.known)
}

// Update schedules a re-render of the current view.
func (a *App) Update() {
	a.rt.enqueue(func() {
		if a.rt.app == a {
			a.rt.render()
		}
	})
}

// Push shows c on top of the current view.
func (a *App) Push(c ui.Component) {
	a.rt.enqueue(func() { a.push(c) })
}

// Pop returns to the previous view. Popping the last view is a no-op.
func (a *App) Pop() {
	a.rt.enqueue(a.pop)
}

// Depth returns the number of views below the current one. Only call it
// from UI code.
func (a *App) Depth() int {
	return len(a.stack)
}

func (a *App) push(c ui.Component) {
	if a.rt.app != a || c == nil {
		return
	}
	if a.root != nil {
		a.stack = append(a.stack, a.root)
	}
	a.root = c
	a.rt.render()
}

func (a *App) pop() {
	if a.rt.app != a || len(a.stack) == 0 {
		return
	}
	n := len(a.stack) - 1
	a.root = a.stack[n]
	a.stack = a.stack[:n]
	a.rt.render()
}

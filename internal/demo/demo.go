// Package demo holds the plugins the sidecar serves.
package demo

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/capability"
	"github.com/aretw0/lattice/pkg/plugin"
	"github.com/aretw0/lattice/pkg/ui"
)

// PluginName is the name the demo plugin registers under.
const PluginName = "demo"

// Fruit is a row in the fruit list.
type Fruit struct {
	Name   string
	Origin string
	Wiki   string
}

// Fruits is the list the index command shows.
var Fruits = []Fruit{
	{Name: "Apple", Origin: "Central Asia", Wiki: "https://en.wikipedia.org/wiki/Apple"},
	{Name: "Banana", Origin: "Southeast Asia", Wiki: "https://en.wikipedia.org/wiki/Banana"},
	{Name: "Cherry", Origin: "Europe", Wiki: "https://en.wikipedia.org/wiki/Cherry"},
}

// Registry returns a registry with the demo plugin.
func Registry() (*plugin.Registry, error) {
	reg := plugin.NewRegistry()
	if err := reg.Register(Plugin()); err != nil {
		return nil, err
	}
	return reg, nil
}

// Plugin returns the demo plugin.
func Plugin() plugin.Plugin {
	return plugin.Plugin{
		Name:  PluginName,
		Title: "Lattice Demo",
		Preferences: []plugin.Preference{
			{Name: "greeting", Title: "Greeting", Type: "textfield", Default: "Pick a fruit"},
			{Name: "prompt", Title: "Prompt", Type: "textfield", Default: "Name a fruit"},
		},
		Commands: []plugin.Command{
			{Name: "index", Title: "Fruits", Mode: plugin.ModeView, View: fruitList},
			{Name: "counter", Title: "Counter", Mode: plugin.ModeView, View: counter},
			{Name: "clipboard", Title: "Show Clipboard", Mode: plugin.ModeNoView, Run: showClipboard},
			{Name: "ask", Title: "Ask", Mode: plugin.ModeNoView, Run: ask},
		},
	}
}

func fruitList(app *plugin.App) ui.Component {
	eaten := map[string]int{}
	return func() ui.Element {
		greeting, _ := app.Preference("greeting")
		items := ui.Map(Fruits, func(_ int, f Fruit) ui.Element {
			return ui.ListItem(ui.Props{
				"title":    f.Name,
				"subtitle": fmt.Sprintf("eaten %d", eaten[f.Name]),
				"actions": ui.ActionPanel(
					ui.Action("Eat", func() {
						eaten[f.Name]++
						app.Update()
						if _, err := app.Capabilities().ShowToast(capability.ToastOptions{
							Title:   "Ate " + f.Name,
							Message: fmt.Sprintf("%d so far", eaten[f.Name]),
						}); err != nil {
							app.Logger().Warn("toast failed", "err", err)
						}
					}),
					ui.CopyToClipboard("Copy Name", f.Name),
					ui.Push("Show Details", details(f)),
					ui.ActionPanelSection("Links",
						ui.OpenInBrowser("Open Wikipedia", f.Wiki),
					),
				),
			}).WithKey(f.Name)
		})
		return ui.List(ui.Props{"navigationTitle": fmt.Sprint(greeting)},
			ui.ListSection("Fruit", items...),
		)
	}
}

func details(f Fruit) ui.Component {
	return ui.Static(ui.Detail(fmt.Sprintf("# %s\n\nOrigin: %s", f.Name, f.Origin), ui.Props{
		"actions": ui.ActionPanel(ui.OpenInBrowser("Open Wikipedia", f.Wiki)),
	}))
}

func counter(app *plugin.App) ui.Component {
	count := 0
	return func() ui.Element {
		return ui.Detail(fmt.Sprintf("# %d", count), ui.Props{
			"actions": ui.ActionPanel(
				ui.Action("Increment", func() { count++; app.Update() }),
				ui.Action("Reset", func() { count = 0; app.Update() }),
			),
		})
	}
}

func showClipboard(ctx context.Context, app *plugin.App) error {
	text, err := app.Capabilities().Clipboard().ReadText(ctx, 0)
	if err != nil {
		return fmt.Errorf("read clipboard: %w", err)
	}
	if text == "" {
		text = "Clipboard is empty"
	}
	return app.Capabilities().ShowHUD(text)
}

func ask(ctx context.Context, app *plugin.App) error {
	prompt, _ := app.Preference("prompt")
	stream := app.Capabilities().Ask(ctx, fmt.Sprint(prompt), capability.AskOptions{})
	stream.OnChunk(func(text string) {
		app.Logger().Debug("answer chunk", "text", text)
	})
	answer, err := stream.Wait(ctx)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	return app.Capabilities().ShowHUD(answer)
}

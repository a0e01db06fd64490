/*
Package plugin is the plugin side of Lattice.

A Runtime reads host instructions as JSON lines, looks commands up in a
Registry and ships UI updates back as msgpack frames. View commands
describe their UI with package ui; the runtime reconciles each render and
sends the resulting batch.

	reg := plugin.NewRegistry()
	reg.Register(plugin.Plugin{
		Name: "hello",
		Commands: []plugin.Command{{
			Name: "index",
			View: func(app *plugin.App) ui.Component {
				return ui.Static(ui.Detail("# Hello", nil))
			},
		}},
	})
	plugin.New(reg, os.Stdin, os.Stdout).Run(ctx)

Handlers receive host arguments coerced to their parameter types. Work
that touches the UI runs on a single goroutine; capability calls made
through App.Capabilities may block a handler without stalling responses.
*/
package plugin

/*
Package lattice hosts plugins that describe their user interface over a pipe.

A plugin process keeps a tree of component instances and reconciles it
against the UI it renders. Each change leaves the plugin as a batch of
mutation commands framed with MessagePack. The host replays those batches
into its own tree, serves the capability requests the plugin makes
(clipboard, OAuth tokens, AI, toasts) and drives the plugin with JSON-line
instructions such as dispatch-event and pop-view.

# Packages

  - pkg/plugin: the plugin runtime, its command registry and the App handle.
  - pkg/ui: element constructors for lists, grids, details, forms and actions.
  - pkg/capability: the plugin-side capability clients.
  - pkg/host: the host session that routes frames and executes actions.
  - pkg/hoststore: the host's view of the tree with selection and action roles.
  - pkg/adapters: persistence, process, HTTP and reference executor adapters.

# Usage

A host spawns the plugin and runs a command:

	sess, err := host.Spawn(ctx, process.Config{Command: "./my-plugin"},
		host.WithExecutor(capability.New()),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()

	go sess.Run(ctx)
	err = sess.RunPlugin(ctx, host.RunRequest{PluginName: "demo", CommandName: "index"})

The plugin side registers commands and serves them on stdin and stdout:

	reg := plugin.NewRegistry()
	reg.Register(plugin.Plugin{Name: "demo", Commands: []plugin.Command{{
		Name: "index",
		View: func(app *plugin.App) ui.Component {
			return ui.Static(ui.List(nil, ui.ListItem(ui.Props{"title": "Hello"})))
		},
	}}})
	plugin.New(reg, os.Stdin, os.Stdout).Run(ctx)
*/
package lattice

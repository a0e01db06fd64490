/*
Package host is the trusted end of a plugin connection.

A Session reads the plugin's framed messages, rebuilds its UI tree in a
hoststore.Store and answers capability requests through an Executor. It
sends instructions back as JSON lines:

	sess, err := host.Spawn(ctx, process.Config{Command: "lattice", Args: []string{"sidecar"}},
		host.WithExecutor(exec),
		host.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	go sess.Run(ctx)
	err = sess.RunPlugin(ctx, host.RunRequest{PluginName: "demo", CommandName: "index"})

Selection and action execution work on the derived state of the current
snapshot. ExecutePrimary performs built-in actions such as copy and open
through the Executor and dispatches the rest to the plugin.
*/
package host

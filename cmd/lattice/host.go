package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/demo"
	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:   "host [-- plugin-command args...]",
	Short: "Run a plugin command and drive it from the terminal",
	Long: `Spawns the plugin process, runs one of its commands and reads control
input from stdin. Without a plugin command the built-in sidecar is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.HostOptions{PluginCmd: args}
		opts.ConfigPath, _ = cmd.Flags().GetString("config")
		opts.LogLevel, _ = cmd.Flags().GetString("log-level")
		opts.Plugin, _ = cmd.Flags().GetString("plugin")
		opts.Command, _ = cmd.Flags().GetString("command")
		opts.Dump, _ = cmd.Flags().GetBool("dump")
		opts.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
		return cli.RunHost(opts)
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)

	hostCmd.Flags().StringP("plugin", "p", demo.PluginName, "Plugin name")
	hostCmd.Flags().StringP("command", "c", "index", "Command name")
	hostCmd.Flags().BoolP("dump", "d", false, "Print the tree after every change")
	hostCmd.Flags().String("metrics-addr", "", "Serve /metrics, /tree and /events on this address")
}

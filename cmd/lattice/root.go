package main

import (
	"fmt"
	"os"

	"github.com/aretw0/lattice/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Lattice hosts plugins that describe their UI over a pipe",
	Long: `Lattice runs a plugin process, rebuilds the UI tree the plugin describes
and serves the capabilities the plugin asks for.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Config file (yaml or json)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error or off")
}

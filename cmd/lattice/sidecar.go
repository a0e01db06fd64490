package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/spf13/cobra"
)

var sidecarCmd = &cobra.Command{
	Use:    "sidecar",
	Short:  "Serve the built-in plugins over stdin and stdout",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return cli.RunSidecar(configPath)
	},
}

func init() {
	rootCmd.AddCommand(sidecarCmd)
}

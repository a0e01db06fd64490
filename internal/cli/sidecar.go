package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/demo"
	"github.com/aretw0/lattice/pkg/plugin"
)

// RunSidecar serves the demo plugins over stdin and stdout until the host
// closes the pipe.
func RunSidecar(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	reg, err := demo.Registry()
	if err != nil {
		return fmt.Errorf("failed to register plugins: %w", err)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	rt := plugin.New(reg, os.Stdin, os.Stdout, plugin.WithPolicy(cfg.Timeouts.Policy()))
	return handleExecutionError(rt.Run(sigCtx))
}

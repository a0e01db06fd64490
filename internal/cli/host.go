package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/metrics"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/adapters/capability"
	httpAdapter "github.com/aretw0/lattice/pkg/adapters/http"
	"github.com/aretw0/lattice/pkg/adapters/process"
	"github.com/aretw0/lattice/pkg/host"
	"github.com/aretw0/lattice/pkg/hoststore"
	"github.com/aretw0/lattice/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HostOptions holds the flags of the host command. Non-zero values override
// the config file.
type HostOptions struct {
	ConfigPath  string
	LogLevel    string
	Plugin      string
	Command     string
	Dump        bool
	MetricsAddr string
	// PluginCmd replaces the configured plugin process.
	PluginCmd []string
}

// RunHost spawns the plugin process and drives it from stdin until the user
// quits, the plugin exits or a signal arrives.
func RunHost(opts HostOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	applyOverrides(&cfg, opts)
	if err := selfSidecar(&cfg, opts.ConfigPath); err != nil {
		return err
	}

	logger := createLogger(cfg.LogLevel)
	out := os.Stdout
	tui.PrintBanner(out)

	prefs := cfg.Preferences.Open()
	defer prefs.Close()
	tokenBackend := cfg.Tokens.Open()
	defer tokenBackend.Close()
	tokens, err := cfg.Tokens.Seal(tokenBackend)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exec := capability.New(
		capability.WithTokenStore(tokens),
		capability.WithLogger(logger),
		capability.WithOpener(func(_ context.Context, target, app string) error {
			if app != "" {
				printSystemMessage(out, "Open %s with %s", target, app)
			} else {
				printSystemMessage(out, "Open %s", target)
			}
			return nil
		}),
		capability.WithHUD(func(_ context.Context, title string) error {
			printSystemMessage(out, "%s", title)
			return nil
		}),
	)

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	sess, err := host.Spawn(sigCtx, cfg.Plugin,
		host.WithExecutor(exec),
		host.WithAuthorizer(printAuthorizer{out: out}),
		host.WithPreferenceStore(prefs),
		host.WithObserver(metrics.New(reg)),
		host.WithLogger(logger),
		host.WithErrorHandler(func(msg string) {
			printSystemMessage(out, "Plugin error: %s", msg)
		}),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: httpAdapter.NewHandler(sess, httpAdapter.WithGatherer(reg), httpAdapter.WithLogger(logger)),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("debug server failed", "err", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("debug server shutdown", "err", err)
			}
		}()
		printSystemMessage(out, "Debug server on %s", cfg.Metrics.Addr)
	}

	printer := tui.NewPrinter(out)
	if opts.Dump {
		unsubscribe := sess.Subscribe(func(snap *hoststore.Snapshot) {
			if err := printer.Print(snap); err != nil {
				logger.Warn("tree dump failed", "err", err)
			}
		})
		defer unsubscribe()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(sigCtx) }()

	if err := sess.SendPluginList([]plugin.Info{{Name: opts.Plugin, Commands: []string{opts.Command}}}); err != nil {
		return err
	}
	if err := sess.RunPlugin(sigCtx, host.RunRequest{PluginName: opts.Plugin, CommandName: opts.Command}); err != nil {
		return err
	}
	printSystemMessage(out, "Running %s/%s. Type ? for help.", opts.Plugin, opts.Command)

	ctrl := NewController(sess, printer, out, opts.Plugin)
	loopErr := make(chan error, 1)
	go func() { loopErr <- ctrl.Loop(sigCtx, os.Stdin) }()

	select {
	case err := <-runErr:
		printSystemMessage(out, "Plugin exited.")
		return handleExecutionError(err)
	case err := <-loopErr:
		return err
	case <-sigCtx.Done():
		if sig := sigCtx.Signal(); sig != nil {
			printSystemMessage(out, "Interrupted by %v.", sig)
		}
		return nil
	}
}

func applyOverrides(cfg *config.Config, opts HostOptions) {
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}
	if len(opts.PluginCmd) > 0 {
		cfg.Plugin = process.Config{Command: opts.PluginCmd[0], Args: opts.PluginCmd[1:]}
	}
}

// selfSidecar points an unconfigured plugin at this binary's sidecar command.
func selfSidecar(cfg *config.Config, configPath string) error {
	if !cfg.Plugin.IsZero() {
		return nil
	}
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate sidecar: %w", err)
	}
	args := []string{"sidecar"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cfg.Plugin = process.Config{Command: self, Args: args}
	return nil
}

// printAuthorizer shows the authorization URL. The redirect comes back
// through the "link" control command.
type printAuthorizer struct {
	out io.Writer
}

func (a printAuthorizer) Authorize(_ context.Context, req host.AuthorizeRequest) error {
	printSystemMessage(a.out, "%s wants to sign in: %s", req.ProviderName, req.Description)
	printSystemMessage(a.out, "Open %s", req.URL)
	printSystemMessage(a.out, "Then paste the redirect: link lattice://oauth?code=...&state=%s", req.State)
	return nil
}

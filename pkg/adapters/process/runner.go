package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
)

// Process is a running plugin with its stdio pipes. The host writes JSON
// lines to Stdin and reads frames from Stdout; stderr lines go to the
// logger.
type Process struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser

	cmd    *exec.Cmd
	logger *slog.Logger
	stderr sync.WaitGroup

	waitOnce sync.Once
	waitErr  error
}

// Option configures Start.
type Option func(*Process)

// WithLogger receives the plugin's stderr, one record per line.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Process) {
		p.logger = logger
	}
}

// Start launches cfg. Canceling ctx kills the process.
func Start(ctx context.Context, cfg Config, opts ...Option) (*Process, error) {
	if cfg.IsZero() {
		return nil, errors.New("process: no command configured")
	}

	p := &Process{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(cmd.Environ(), environ(cfg.Environment)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start plugin %s: %w", cfg.Command, err)
	}
	p.cmd = cmd
	p.Stdin = stdin
	p.Stdout = stdout

	p.stderr.Add(1)
	go func() {
		defer p.stderr.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			p.logger.Info("plugin stderr", "line", scanner.Text())
		}
	}()

	p.logger.Debug("plugin started", "command", cfg.Command, "pid", cmd.Process.Pid)
	return p, nil
}

// Wait blocks until the process exits. It is safe to call more than once.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		// Stderr must be drained before Wait closes the pipe.
		p.stderr.Wait()
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

// Stop closes stdin, which a well-behaved plugin treats as end of input,
// and waits for the process to exit.
func (p *Process) Stop() error {
	_ = p.Stdin.Close()
	return p.Wait()
}

// environ renders env as KEY=VALUE pairs in a stable order.
func environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/host"
	"github.com/aretw0/lattice/pkg/hoststore"
)

// Controls is the part of a host session the controller drives.
// *host.Session satisfies it.
type Controls interface {
	Snapshot() *hoststore.Snapshot
	SelectNext() *hoststore.Snapshot
	SelectPrev() *hoststore.Snapshot
	ExecutePrimary(ctx context.Context) error
	ExecuteSecondary(ctx context.Context) error
	TriggerToastAction(id int64, secondary bool) error
	PopView() error
	GoBack() error
	RunPlugin(ctx context.Context, req host.RunRequest) error
	HandleDeepLink(raw string) error
}

// ErrUnknownInput is returned for lines the controller does not understand.
var ErrUnknownInput = errors.New("unknown input")

const help = `j/k      select next/previous item
enter    run the primary action
s        run the secondary action
t/T      run the newest toast's primary/secondary action
b        pop the current view
g        go back to the plugin list
p        print the tree
run CMD  run another command of the plugin
link URL complete an OAuth redirect
q        quit`

// Controller turns input lines into session operations.
type Controller struct {
	controls Controls
	printer  *tui.Printer
	out      io.Writer
	plugin   string
}

// NewController creates a Controller for the plugin pluginName.
func NewController(c Controls, printer *tui.Printer, out io.Writer, pluginName string) *Controller {
	return &Controller{controls: c, printer: printer, out: out, plugin: pluginName}
}

// Handle performs one input line. It reports whether the user asked to quit.
func (c *Controller) Handle(ctx context.Context, line string) (quit bool, err error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return false, c.controls.ExecutePrimary(ctx)
	case "s":
		return false, c.controls.ExecuteSecondary(ctx)
	case "j":
		c.controls.SelectNext()
	case "k":
		c.controls.SelectPrev()
	case "t", "T":
		id, ok := newestToast(c.controls.Snapshot())
		if !ok {
			return false, errors.New("no toast shown")
		}
		return false, c.controls.TriggerToastAction(id, cmd == "T")
	case "b":
		return false, c.controls.PopView()
	case "g":
		return false, c.controls.GoBack()
	case "p":
		return false, c.printer.Print(c.controls.Snapshot())
	case "run":
		if arg == "" {
			return false, errors.New("run: missing command name")
		}
		return false, c.controls.RunPlugin(ctx, host.RunRequest{PluginName: c.plugin, CommandName: arg})
	case "link":
		return false, c.controls.HandleDeepLink(arg)
	case "?", "help":
		fmt.Fprintln(c.out, help)
	case "q":
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownInput, cmd)
	}
	return false, nil
}

// Loop reads lines from r until EOF, quit or ctx is done. Failed lines are
// reported and do not stop the loop.
func (c *Controller) Loop(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		quit, err := c.Handle(ctx, scanner.Text())
		if err != nil {
			printSystemMessage(c.out, "Error: %v", err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

func newestToast(snap *hoststore.Snapshot) (int64, bool) {
	if len(snap.Toasts) == 0 {
		return 0, false
	}
	return slices.Max(slices.Collect(maps.Keys(snap.Toasts))), true
}

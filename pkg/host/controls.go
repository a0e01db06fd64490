package host

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/aretw0/lattice/pkg/capability"
	"github.com/aretw0/lattice/pkg/hoststore"
	"github.com/aretw0/lattice/pkg/plugin"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/ui"
)

// RunRequest starts a plugin command. Preferences override stored values.
type RunRequest struct {
	PluginPath  string
	PluginName  string
	CommandName string
	Mode        plugin.Mode
	Preferences map[string]any
}

// RunPlugin resets the tree and asks the plugin to run a command. Stored
// preferences for the plugin are loaded first when a store is configured.
func (s *Session) RunPlugin(ctx context.Context, req RunRequest) error {
	prefs := map[string]any{}
	if s.prefs != nil {
		stored, err := s.prefs.LoadPreferences(ctx, req.PluginName)
		switch {
		case err == nil:
			maps.Copy(prefs, stored)
		case errors.Is(err, ports.ErrNotFound):
		default:
			return fmt.Errorf("load preferences for %s: %w", req.PluginName, err)
		}
	}
	maps.Copy(prefs, req.Preferences)

	mode := req.Mode
	if mode == "" {
		mode = plugin.ModeView
	}

	s.mu.Lock()
	s.current = req.PluginName
	s.mu.Unlock()
	s.publish(s.store.Reset())

	s.logger.Info("running plugin", "plugin", req.PluginName, "command", req.CommandName, "mode", mode)
	return s.send(plugin.ActionRunPlugin, plugin.RunPayload{
		PluginPath:  req.PluginPath,
		PluginName:  req.PluginName,
		CommandName: req.CommandName,
		Mode:        mode,
		Preferences: prefs,
	})
}

// Dispatch invokes handler on the plugin instance id.
func (s *Session) Dispatch(id int64, handler string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	return s.send(plugin.ActionDispatchEvent, plugin.EventPayload{
		InstanceID:  id,
		HandlerName: handler,
		Args:        args,
	})
}

// PopView asks the plugin to leave the current navigation level.
func (s *Session) PopView() error {
	return s.send(plugin.ActionPopView, struct{}{})
}

// GoBack unmounts the running command and drops the host tree.
func (s *Session) GoBack() error {
	s.mu.Lock()
	s.current = ""
	s.mu.Unlock()
	s.publish(s.store.Reset())
	return s.send(plugin.ActionGoBack, struct{}{})
}

// SetPreferences persists values and pushes them to the plugin.
func (s *Session) SetPreferences(ctx context.Context, pluginName string, values map[string]any) error {
	if s.prefs != nil {
		if err := s.prefs.SavePreferences(ctx, pluginName, values); err != nil {
			return fmt.Errorf("save preferences for %s: %w", pluginName, err)
		}
	}
	return s.send(plugin.ActionPreferenceValues, plugin.PreferenceValuesPayload{
		PluginName: pluginName,
		Values:     values,
	})
}

// SendPluginList announces the known plugins.
func (s *Session) SendPluginList(plugins []plugin.Info) error {
	if plugins == nil {
		plugins = []plugin.Info{}
	}
	return s.send(plugin.ActionPluginList, plugin.PluginListPayload{Plugins: plugins})
}

// HandleDeepLink completes an OAuth authorization from a redirect such as
// lattice://oauth?code=..&state=.. or com.lattice:/oauth?code=..&state=..
func (s *Session) HandleDeepLink(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadDeepLink, err)
	}
	if u.Host != "oauth" && strings.TrimPrefix(u.Path, "/") != "oauth" {
		return fmt.Errorf("%w: %s", ErrBadDeepLink, raw)
	}
	q := u.Query()
	state := q.Get("state")
	if state == "" {
		return fmt.Errorf("%w: missing state", ErrBadDeepLink)
	}

	resp := map[string]any{"state": state}
	if msg := q.Get("error"); msg != "" {
		if desc := q.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		resp["error"] = msg
	} else {
		resp["code"] = q.Get("code")
	}
	return s.send(capability.ActionOAuthResponse, resp)
}

// Select moves the selection to an item.
func (s *Session) Select(id int64) bool {
	snap, ok := s.store.Select(id)
	if ok {
		s.publish(snap)
	}
	return ok
}

// SelectNext moves the selection down one item.
func (s *Session) SelectNext() *hoststore.Snapshot {
	snap := s.store.SelectNext()
	s.publish(snap)
	return snap
}

// SelectPrev moves the selection up one item.
func (s *Session) SelectPrev() *hoststore.Snapshot {
	snap := s.store.SelectPrev()
	s.publish(snap)
	return snap
}

// ExecutePrimary runs the primary action of the current selection.
func (s *Session) ExecutePrimary(ctx context.Context) error {
	snap := s.store.Snapshot()
	return s.executeAction(ctx, snap, snap.Primary)
}

// ExecuteSecondary runs the secondary action of the current selection.
func (s *Session) ExecuteSecondary(ctx context.Context) error {
	snap := s.store.Snapshot()
	return s.executeAction(ctx, snap, snap.Secondary)
}

// executeAction performs built-in actions through the Executor and
// dispatches everything else back to the plugin.
func (s *Session) executeAction(ctx context.Context, snap *hoststore.Snapshot, id int64) error {
	n, ok := snap.Node(id)
	if !ok {
		return ErrNoAction
	}

	switch n.Kind {
	case ui.KindActionCopy:
		return s.executeLocal(ctx, "clipboard-copy", map[string]any{
			"content": map[string]any{"text": n.Props["content"]},
			"options": map[string]any{"concealed": n.Props["concealed"] == true},
		})
	case ui.KindActionPaste:
		return s.executeLocal(ctx, "clipboard-paste", map[string]any{
			"content": map[string]any{"text": n.Props["content"]},
		})
	case ui.KindActionOpenInBrowser:
		return s.executeLocal(ctx, "open", map[string]any{"target": n.Props["url"]})
	case ui.KindActionOpen:
		return s.executeLocal(ctx, "open", map[string]any{
			"target":      n.Props["target"],
			"application": n.Props["application"],
		})
	case ui.KindActionShowInFinder:
		return s.executeLocal(ctx, "system-show-in-finder", map[string]any{"path": n.Props["path"]})
	case ui.KindActionPanelSubmenu:
		return fmt.Errorf("host: %q is a submenu", n.Title())
	case ui.KindActionSubmitForm:
		return s.Dispatch(id, "onSubmit")
	default:
		return s.Dispatch(id, "onAction")
	}
}

func (s *Session) executeLocal(ctx context.Context, typ string, payload map[string]any) error {
	_, err := s.execute(ctx, Request{Type: typ, Payload: payload})
	return err
}

// TriggerToastAction runs a toast's primary or secondary action.
func (s *Session) TriggerToastAction(id int64, secondary bool) error {
	t, ok := s.store.Snapshot().Toasts[id]
	if !ok {
		return fmt.Errorf("host: toast %d not shown", id)
	}
	action, handler := t.PrimaryAction, capability.HandlerPrimaryAction
	if secondary {
		action, handler = t.SecondaryAction, capability.HandlerSecondaryAction
	}
	if action == nil || !action.OnAction {
		return ErrNoAction
	}
	return s.Dispatch(id, handler)
}

package plugin

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/lattice/pkg/ui"
)

// Mode is how a command presents itself.
type Mode string

const (
	ModeView    Mode = "view"
	ModeNoView  Mode = "no-view"
	ModeMenuBar Mode = "menu-bar"
)

// ErrNotFound is returned when a plugin or command is not registered.
var ErrNotFound = errors.New("plugin: not found")

// Preference declares a setting a plugin reads at runtime.
type Preference struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Command is one entry point of a plugin. View and menu-bar commands supply
// View; no-view commands supply Run.
type Command struct {
	Name  string
	Title string
	Mode  Mode
	View  func(app *App) ui.Component
	Run   func(ctx context.Context, app *App) error
}

// Plugin is a named set of commands.
type Plugin struct {
	Name        string
	Title       string
	Preferences []Preference
	Commands    []Command
}

// Defaults returns the declared default of every preference that has one.
func (p Plugin) Defaults() map[string]any {
	out := make(map[string]any, len(p.Preferences))
	for _, pref := range p.Preferences {
		if pref.Default != nil {
			out[pref.Name] = pref.Default
		}
	}
	return out
}

// Info is the listing form of a plugin.
type Info struct {
	Name        string       `json:"name" mapstructure:"name"`
	Title       string       `json:"title" mapstructure:"title"`
	Commands    []string     `json:"commands" mapstructure:"commands"`
	Preferences []Preference `json:"preferences,omitempty" mapstructure:"preferences"`
}

// Registry manages the available plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
	}
}

// Register adds a plugin to the registry.
// If a plugin with the same name exists, it is overwritten.
func (r *Registry) Register(p Plugin) error {
	if p.Name == "" {
		return fmt.Errorf("plugin without a name")
	}
	seen := make(map[string]bool, len(p.Commands))
	for _, c := range p.Commands {
		if seen[c.Name] {
			return fmt.Errorf("plugin %s: duplicate command %q", p.Name, c.Name)
		}
		seen[c.Name] = true
		switch c.Mode {
		case ModeNoView:
			if c.Run == nil {
				return fmt.Errorf("plugin %s: command %q has no Run", p.Name, c.Name)
			}
		default:
			if c.View == nil {
				return fmt.Errorf("plugin %s: command %q has no View", p.Name, c.Name)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name] = p
	return nil
}

// Lookup returns the plugin and command registered under the given names.
// An empty command name selects the plugin's first command.
func (r *Registry) Lookup(pluginName, commandName string) (Plugin, Command, error) {
	r.mu.RLock()
	p, ok := r.plugins[pluginName]
	r.mu.RUnlock()

	if !ok {
		return Plugin{}, Command{}, fmt.Errorf("%w: plugin %s", ErrNotFound, pluginName)
	}
	if commandName == "" && len(p.Commands) > 0 {
		return p, p.Commands[0], nil
	}
	for _, c := range p.Commands {
		if c.Name == commandName {
			return p, c, nil
		}
	}
	return Plugin{}, Command{}, fmt.Errorf("%w: command %s/%s", ErrNotFound, pluginName, commandName)
}

// List returns every plugin sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Sorted(maps.Keys(r.plugins))
	out := make([]Info, 0, len(names))
	for _, name := range names {
		p := r.plugins[name]
		info := Info{Name: p.Name, Title: p.Title, Preferences: p.Preferences}
		for _, c := range p.Commands {
			info.Commands = append(info.Commands, c.Name)
		}
		out = append(out, info)
	}
	return out
}

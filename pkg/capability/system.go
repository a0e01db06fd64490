package capability

import "context"

// Application describes an installed application.
type Application struct {
	Name     string `mapstructure:"name"`
	Path     string `mapstructure:"path"`
	BundleID string `mapstructure:"bundleId"`
}

// FileSystemItem is a selected file manager entry.
type FileSystemItem struct {
	Path string `mapstructure:"path"`
}

// System queries and acts on the host operating system.
type System struct {
	c *Client
}

// System returns the system API.
func (c *Client) System() System {
	return System{c: c}
}

// GetApplications lists applications able to open path, or all of them
// when path is empty.
func (s System) GetApplications(ctx context.Context, path string) ([]Application, error) {
	var out []Application
	err := s.c.call(ctx, "system-get-applications", pathPayload(path), &out)
	return out, err
}

// GetDefaultApplication returns the application that opens path by default.
func (s System) GetDefaultApplication(ctx context.Context, path string) (Application, error) {
	var out Application
	err := s.c.call(ctx, "system-get-default-application", map[string]any{"path": path}, &out)
	return out, err
}

// GetFrontmostApplication returns the application currently in focus.
func (s System) GetFrontmostApplication(ctx context.Context) (Application, error) {
	var out Application
	err := s.c.call(ctx, "system-get-frontmost-application", nil, &out)
	return out, err
}

// ShowInFinder reveals path in the file manager.
func (s System) ShowInFinder(ctx context.Context, path string) error {
	return s.c.call(ctx, "system-show-in-finder", map[string]any{"path": path}, nil)
}

// Trash moves paths to the trash.
func (s System) Trash(ctx context.Context, paths ...string) error {
	return s.c.call(ctx, "system-trash", map[string]any{"paths": paths}, nil)
}

func pathPayload(path string) map[string]any {
	if path == "" {
		return nil
	}
	return map[string]any{"path": path}
}

// Environment exposes the user's current context.
type Environment struct {
	c *Client
}

// Environment returns the environment API.
func (c *Client) Environment() Environment {
	return Environment{c: c}
}

// GetSelectedText returns the text selected in the frontmost application.
// It uses the short selected-text deadline.
func (e Environment) GetSelectedText(ctx context.Context) (string, error) {
	result, err := e.c.request(ctx, "get-selected-text", e.c.policy.SelectedText, nil)
	if err != nil {
		return "", err
	}
	text, _ := result.(string)
	return text, nil
}

// GetSelectedFinderItems returns the file manager selection.
func (e Environment) GetSelectedFinderItems(ctx context.Context) ([]FileSystemItem, error) {
	var out []FileSystemItem
	err := e.c.call(ctx, "get-selected-finder-items", nil, &out)
	return out, err
}

// Open asks the host to open target, optionally with a specific application.
// It does not wait for an answer.
func (e Environment) Open(target, application string) error {
	payload := map[string]any{"target": target}
	if application != "" {
		payload["application"] = application
	}
	return e.c.notify("open", payload)
}

// ShowHUD flashes a short message over the host window.
func (c *Client) ShowHUD(title string) error {
	return c.notify("SHOW_HUD", map[string]any{"title": title})
}

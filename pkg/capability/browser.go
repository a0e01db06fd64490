package capability

import (
	"context"
	"fmt"
)

// Tab is an open browser tab.
type Tab struct {
	ID      int64  `mapstructure:"tabId"`
	URL     string `mapstructure:"url"`
	Title   string `mapstructure:"title"`
	Favicon string `mapstructure:"favicon"`
	Active  bool   `mapstructure:"active"`
}

// ContentFormat selects the representation returned by GetContent.
type ContentFormat string

const (
	FormatHTML     ContentFormat = "html"
	FormatText     ContentFormat = "text"
	FormatMarkdown ContentFormat = "markdown"
)

// ContentOptions narrows GetContent.
type ContentOptions struct {
	CSSSelector string
	TabID       int64
	// Format defaults to markdown.
	Format ContentFormat
}

// BrowserExtension talks to the companion browser extension through the host.
type BrowserExtension struct {
	c *Client
}

// BrowserExtension returns the browser extension API.
func (c *Client) BrowserExtension() BrowserExtension {
	return BrowserExtension{c: c}
}

type browserValue[T any] struct {
	Value T `mapstructure:"value"`
}

// GetTabs lists the open tabs.
func (b BrowserExtension) GetTabs(ctx context.Context) ([]Tab, error) {
	var out browserValue[[]Tab]
	if err := b.c.call(ctx, "browser-extension-request", browserRequest("getTabs", map[string]any{}), &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetContent returns the content of a tab, the active one by default.
func (b BrowserExtension) GetContent(ctx context.Context, opts ContentOptions) (string, error) {
	format := opts.Format
	if format == "" {
		format = FormatMarkdown
	}
	if opts.CSSSelector != "" && format == FormatMarkdown {
		return "", fmt.Errorf("%w: a css selector cannot be combined with the markdown format", ErrInvalidOptions)
	}

	params := map[string]any{"field": string(format)}
	if opts.CSSSelector != "" {
		params["selector"] = opts.CSSSelector
	}
	if opts.TabID != 0 {
		params["tabId"] = opts.TabID
	}

	var out browserValue[string]
	if err := b.c.call(ctx, "browser-extension-request", browserRequest("getTab", params), &out); err != nil {
		return "", err
	}
	return out.Value, nil
}

func browserRequest(method string, params map[string]any) map[string]any {
	return map[string]any{"method": method, "params": params}
}

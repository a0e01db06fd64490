package capability

import "context"

// Content is what the clipboard holds. Empty fields are omitted on the wire.
type Content struct {
	Text string `mapstructure:"text"`
	HTML string `mapstructure:"html"`
	File string `mapstructure:"file"`
}

// Text is shorthand for plain-text content.
func Text(s string) Content {
	return Content{Text: s}
}

func (c Content) wire() map[string]any {
	m := make(map[string]any, 3)
	if c.Text != "" {
		m["text"] = c.Text
	}
	if c.HTML != "" {
		m["html"] = c.HTML
	}
	if c.File != "" {
		m["file"] = c.File
	}
	return m
}

// CopyOptions tunes a copy.
type CopyOptions struct {
	// Concealed keeps the entry out of clipboard history.
	Concealed bool
}

// Clipboard reads and writes the host clipboard.
type Clipboard struct {
	c *Client
}

// Clipboard returns the clipboard API.
func (c *Client) Clipboard() Clipboard {
	return Clipboard{c: c}
}

// Copy places content on the clipboard.
func (cb Clipboard) Copy(ctx context.Context, content Content, opts CopyOptions) error {
	payload := map[string]any{"content": content.wire()}
	if opts.Concealed {
		payload["options"] = map[string]any{"concealed": true}
	}
	return cb.c.call(ctx, "clipboard-copy", payload, nil)
}

// Paste inserts content into the frontmost application.
func (cb Clipboard) Paste(ctx context.Context, content Content) error {
	return cb.c.call(ctx, "clipboard-paste", map[string]any{"content": content.wire()}, nil)
}

// Read returns the clipboard entry offset positions back in history.
func (cb Clipboard) Read(ctx context.Context, offset int) (Content, error) {
	var out Content
	err := cb.c.call(ctx, "clipboard-read", offsetPayload(offset), &out)
	return out, err
}

// ReadText returns only the text of the entry at offset.
func (cb Clipboard) ReadText(ctx context.Context, offset int) (string, error) {
	var out Content
	if err := cb.c.call(ctx, "clipboard-read-text", offsetPayload(offset), &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// Clear empties the clipboard.
func (cb Clipboard) Clear(ctx context.Context) error {
	return cb.c.call(ctx, "clipboard-clear", nil, nil)
}

func offsetPayload(offset int) map[string]any {
	if offset <= 0 {
		return nil
	}
	return map[string]any{"offset": offset}
}

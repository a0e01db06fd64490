package capability

import (
	"sync"

	"github.com/aretw0/lattice/pkg/protocol"
)

// ToastStyle is the visual style of a toast.
type ToastStyle string

const (
	ToastSuccess  ToastStyle = "SUCCESS"
	ToastFailure  ToastStyle = "FAILURE"
	ToastAnimated ToastStyle = "ANIMATED"
)

// Handler names the host uses when dispatching toast actions.
const (
	HandlerPrimaryAction   = "primaryAction"
	HandlerSecondaryAction = "secondaryAction"
)

// ToastAction is a button on a toast.
type ToastAction struct {
	Title    string
	Shortcut map[string]any
	OnAction func(*Toast)
}

func (a *ToastAction) wire() *protocol.ToastAction {
	if a == nil {
		return nil
	}
	return &protocol.ToastAction{Title: a.Title, OnAction: a.OnAction != nil, Shortcut: a.Shortcut}
}

// ToastOptions describes a toast to show.
type ToastOptions struct {
	Style           ToastStyle
	Title           string
	Message         string
	PrimaryAction   *ToastAction
	SecondaryAction *ToastAction
}

// Toast is a shown toast. Setters push an UPDATE_TOAST to the host.
type Toast struct {
	c  *Client
	id int64

	mu      sync.Mutex
	style   ToastStyle
	title   string
	message string

	primary   *ToastAction
	secondary *ToastAction
}

// ShowToast shows a toast and keeps it addressable until it is hidden.
func (c *Client) ShowToast(opts ToastOptions) (*Toast, error) {
	style := opts.Style
	if style == "" {
		style = ToastSuccess
	}
	t := &Toast{
		c:         c,
		id:        c.nextID(),
		style:     style,
		title:     opts.Title,
		message:   opts.Message,
		primary:   opts.PrimaryAction,
		secondary: opts.SecondaryAction,
	}

	c.mu.Lock()
	c.toasts[t.id] = t
	c.mu.Unlock()

	cmd := protocol.ShowToast{
		ID:              t.id,
		Style:           string(style),
		Title:           t.title,
		Message:         t.message,
		PrimaryAction:   t.primary.wire(),
		SecondaryAction: t.secondary.wire(),
	}
	if err := c.sender.Send(protocol.Wire(cmd)); err != nil {
		c.forget(t.id)
		return nil, err
	}
	return t, nil
}

// ID returns the toast id. It shares the node id space.
func (t *Toast) ID() int64 {
	return t.id
}

// Title returns the current title.
func (t *Toast) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

// SetTitle replaces the title.
func (t *Toast) SetTitle(title string) error {
	return t.update(func() { t.title = title })
}

// SetMessage replaces the message.
func (t *Toast) SetMessage(message string) error {
	return t.update(func() { t.message = message })
}

// SetStyle replaces the style.
func (t *Toast) SetStyle(style ToastStyle) error {
	return t.update(func() { t.style = style })
}

func (t *Toast) update(mutate func()) error {
	t.mu.Lock()
	mutate()
	cmd := protocol.UpdateToast{ID: t.id, Style: string(t.style), Title: t.title, Message: t.message}
	t.mu.Unlock()
	return t.c.sender.Send(protocol.Wire(cmd))
}

// Hide removes the toast from the host.
func (t *Toast) Hide() error {
	t.c.forget(t.id)
	return t.c.sender.Send(protocol.Wire(protocol.HideToast{ID: t.id}))
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.toasts, id)
	c.mu.Unlock()
}

// ToastHandler returns the action callback of toast id bound to the toast,
// for handler names HandlerPrimaryAction and HandlerSecondaryAction.
func (c *Client) ToastHandler(id int64, name string) (func(), bool) {
	c.mu.Lock()
	t, ok := c.toasts[id]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	var action *ToastAction
	switch name {
	case HandlerPrimaryAction:
		action = t.primary
	case HandlerSecondaryAction:
		action = t.secondary
	}
	if action == nil || action.OnAction == nil {
		return nil, false
	}
	return func() { action.OnAction(t) }, true
}

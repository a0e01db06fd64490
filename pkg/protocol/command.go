package protocol

// CommandType tags a tree mutation on the wire.
type CommandType string

const (
	TypeCreateInstance     CommandType = "CREATE_INSTANCE"
	TypeCreateTextInstance CommandType = "CREATE_TEXT_INSTANCE"
	TypeAppendChild        CommandType = "APPEND_CHILD"
	TypeInsertBefore       CommandType = "INSERT_BEFORE"
	TypeRemoveChild        CommandType = "REMOVE_CHILD"
	TypeUpdateProps        CommandType = "UPDATE_PROPS"
	TypeUpdateText         CommandType = "UPDATE_TEXT"
	TypeReplaceChildren    CommandType = "REPLACE_CHILDREN"
	TypeClearContainer     CommandType = "CLEAR_CONTAINER"
	TypeShowToast          CommandType = "SHOW_TOAST"
	TypeUpdateToast        CommandType = "UPDATE_TOAST"
	TypeHideToast          CommandType = "HIDE_TOAST"
)

// Command is one atomic mutation instruction. The set of variants is closed.
type Command interface {
	Type() CommandType
	// Payload returns the encodable wire payload.
	Payload() map[string]any
	command()
}

// Membership reports whether c changes a parent's children list.
func Membership(c Command) (ParentID, bool) {
	switch t := c.(type) {
	case AppendChild:
		return t.ParentID, true
	case InsertBefore:
		return t.ParentID, true
	case RemoveChild:
		return t.ParentID, true
	}
	return ParentID{}, false
}

type CreateInstance struct {
	ID            int64            `mapstructure:"id"`
	Kind          string           `mapstructure:"type"`
	Props         map[string]any   `mapstructure:"props"`
	Children      []int64          `mapstructure:"children"`
	NamedChildren map[string]int64 `mapstructure:"namedChildren"`
}

func (CreateInstance) Type() CommandType { return TypeCreateInstance }
func (c CreateInstance) Payload() map[string]any {
	p := map[string]any{"id": c.ID, "type": c.Kind, "props": propsOrEmpty(c.Props)}
	if len(c.Children) > 0 {
		p["children"] = idsToWire(c.Children)
	}
	if len(c.NamedChildren) > 0 {
		p["namedChildren"] = namedToWire(c.NamedChildren)
	}
	return p
}

type CreateTextInstance struct {
	ID   int64  `mapstructure:"id"`
	Text string `mapstructure:"text"`
}

func (CreateTextInstance) Type() CommandType { return TypeCreateTextInstance }
func (c CreateTextInstance) Payload() map[string]any {
	return map[string]any{"id": c.ID, "type": "TEXT", "text": c.Text}
}

type AppendChild struct {
	ParentID ParentID `mapstructure:"parentId"`
	ChildID  int64    `mapstructure:"childId"`
}

func (AppendChild) Type() CommandType { return TypeAppendChild }
func (c AppendChild) Payload() map[string]any {
	return map[string]any{"parentId": c.ParentID.Wire(), "childId": c.ChildID}
}

type InsertBefore struct {
	ParentID ParentID `mapstructure:"parentId"`
	ChildID  int64    `mapstructure:"childId"`
	BeforeID int64    `mapstructure:"beforeId"`
}

func (InsertBefore) Type() CommandType { return TypeInsertBefore }
func (c InsertBefore) Payload() map[string]any {
	return map[string]any{"parentId": c.ParentID.Wire(), "childId": c.ChildID, "beforeId": c.BeforeID}
}

type RemoveChild struct {
	ParentID ParentID `mapstructure:"parentId"`
	ChildID  int64    `mapstructure:"childId"`
}

func (RemoveChild) Type() CommandType { return TypeRemoveChild }
func (c RemoveChild) Payload() map[string]any {
	return map[string]any{"parentId": c.ParentID.Wire(), "childId": c.ChildID}
}

// UpdateProps replaces a node's props. NamedChildren is always the full map.
type UpdateProps struct {
	ID            int64            `mapstructure:"id"`
	Props         map[string]any   `mapstructure:"props"`
	NamedChildren map[string]int64 `mapstructure:"namedChildren"`
}

func (UpdateProps) Type() CommandType { return TypeUpdateProps }
func (c UpdateProps) Payload() map[string]any {
	return map[string]any{
		"id":            c.ID,
		"props":         propsOrEmpty(c.Props),
		"namedChildren": namedToWire(c.NamedChildren),
	}
}

type UpdateText struct {
	ID   int64  `mapstructure:"id"`
	Text string `mapstructure:"text"`
}

func (UpdateText) Type() CommandType { return TypeUpdateText }
func (c UpdateText) Payload() map[string]any {
	return map[string]any{"id": c.ID, "text": c.Text}
}

type ReplaceChildren struct {
	ParentID    ParentID `mapstructure:"parentId"`
	ChildrenIDs []int64  `mapstructure:"childrenIds"`
}

func (ReplaceChildren) Type() CommandType { return TypeReplaceChildren }
func (c ReplaceChildren) Payload() map[string]any {
	return map[string]any{"parentId": c.ParentID.Wire(), "childrenIds": idsToWire(c.ChildrenIDs)}
}

type ClearContainer struct {
	ContainerID string `mapstructure:"containerId"`
}

func (ClearContainer) Type() CommandType { return TypeClearContainer }
func (c ClearContainer) Payload() map[string]any {
	return map[string]any{"containerId": c.ContainerID}
}

// ToastAction describes a toast button. OnAction marks a live callback on the plugin side.
type ToastAction struct {
	Title    string         `mapstructure:"title"`
	OnAction bool           `mapstructure:"onAction"`
	Shortcut map[string]any `mapstructure:"shortcut"`
}

func (a *ToastAction) wire() any {
	if a == nil {
		return nil
	}
	p := map[string]any{"title": a.Title, "onAction": a.OnAction}
	if a.Shortcut != nil {
		p["shortcut"] = a.Shortcut
	}
	return p
}

type ShowToast struct {
	ID              int64        `mapstructure:"id"`
	Style           string       `mapstructure:"style"`
	Title           string       `mapstructure:"title"`
	Message         string       `mapstructure:"message"`
	PrimaryAction   *ToastAction `mapstructure:"primaryAction"`
	SecondaryAction *ToastAction `mapstructure:"secondaryAction"`
}

func (ShowToast) Type() CommandType { return TypeShowToast }
func (c ShowToast) Payload() map[string]any {
	p := map[string]any{"id": c.ID, "style": c.Style, "title": c.Title, "message": c.Message}
	if c.PrimaryAction != nil {
		p["primaryAction"] = c.PrimaryAction.wire()
	}
	if c.SecondaryAction != nil {
		p["secondaryAction"] = c.SecondaryAction.wire()
	}
	return p
}

type UpdateToast struct {
	ID      int64  `mapstructure:"id"`
	Style   string `mapstructure:"style"`
	Title   string `mapstructure:"title"`
	Message string `mapstructure:"message"`
}

func (UpdateToast) Type() CommandType { return TypeUpdateToast }
func (c UpdateToast) Payload() map[string]any {
	return map[string]any{"id": c.ID, "style": c.Style, "title": c.Title, "message": c.Message}
}

type HideToast struct {
	ID int64 `mapstructure:"id"`
}

func (HideToast) Type() CommandType { return TypeHideToast }
func (c HideToast) Payload() map[string]any {
	return map[string]any{"id": c.ID}
}

func (CreateInstance) command()     {}
func (CreateTextInstance) command() {}
func (AppendChild) command()        {}
func (InsertBefore) command()       {}
func (RemoveChild) command()        {}
func (UpdateProps) command()        {}
func (UpdateText) command()         {}
func (ReplaceChildren) command()    {}
func (ClearContainer) command()     {}
func (ShowToast) command()          {}
func (UpdateToast) command()        {}
func (HideToast) command()          {}

func propsOrEmpty(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

func idsToWire(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func namedToWire(named map[string]int64) map[string]any {
	out := make(map[string]any, len(named))
	for k, id := range named {
		out[k] = id
	}
	return out
}

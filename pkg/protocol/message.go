package protocol

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

const (
	// MessageBatchUpdate wraps the ordered Commands of one render pass.
	MessageBatchUpdate = "BATCH_UPDATE"
	// MessageLog carries a free-form diagnostic payload.
	MessageLog = "log"
	// MessageError is an uncaught plugin error, reported alongside a log line.
	MessageError = "error"
)

var (
	// ErrUnknownCommand marks a well-formed message whose type is not a Command.
	ErrUnknownCommand = errors.New("protocol: unknown command type")
	// ErrMalformed marks a message that does not fit its declared shape.
	ErrMalformed = errors.New("protocol: malformed message")
)

// UnknownCommandError names the unrecognized type.
type UnknownCommandError struct {
	Type string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("protocol: unknown command type %q", e.Type)
}

func (e *UnknownCommandError) Is(target error) bool {
	return target == ErrUnknownCommand
}

// Envelope is a decoded top-level message before its payload is interpreted.
type Envelope struct {
	Type    string
	Payload any
}

// Message builds a top-level {type, payload} map.
func Message(typ string, payload any) map[string]any {
	return map[string]any{"type": typ, "payload": payload}
}

// Wire returns the standalone message form of a Command.
func Wire(c Command) map[string]any {
	return Message(string(c.Type()), c.Payload())
}

// Batch returns a BATCH_UPDATE message carrying cmds in order.
func Batch(cmds []Command) map[string]any {
	payload := make([]any, len(cmds))
	for i, c := range cmds {
		payload[i] = Wire(c)
	}
	return Message(MessageBatchUpdate, payload)
}

// Log returns a log message.
func Log(payload any) map[string]any {
	return Message(MessageLog, payload)
}

// DecodeEnvelope validates the {type, payload} shape of a decoded value.
func DecodeEnvelope(raw any) (Envelope, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: message is %T, want map", ErrMalformed, raw)
	}
	typ, ok := m["type"].(string)
	if !ok || typ == "" {
		return Envelope{}, fmt.Errorf("%w: message without type", ErrMalformed)
	}
	return Envelope{Type: typ, Payload: m["payload"]}, nil
}

// IsCommand reports whether typ names a Command variant.
func IsCommand(typ string) bool {
	_, ok := commandFactories[CommandType(typ)]
	return ok
}

// DecodeCommand turns an envelope into its Command variant.
func DecodeCommand(env Envelope) (Command, error) {
	factory, ok := commandFactories[CommandType(env.Type)]
	if !ok {
		return nil, &UnknownCommandError{Type: env.Type}
	}
	payload, ok := env.Payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s payload is %T", ErrMalformed, env.Type, env.Payload)
	}
	for _, key := range requiredKeys[CommandType(env.Type)] {
		if _, present := payload[key]; !present {
			return nil, fmt.Errorf("%w: %s missing %q", ErrMalformed, env.Type, key)
		}
	}

	target := factory()
	if err := decodeInto(payload, target); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return reflect.ValueOf(target).Elem().Interface().(Command), nil
}

// DecodeBatch decodes a BATCH_UPDATE payload. Entries that fail are reported
// in errs and left out of cmds; the order of the rest is preserved.
func DecodeBatch(payload any) (cmds []Command, errs []error) {
	items, ok := payload.([]any)
	if !ok {
		return nil, []error{fmt.Errorf("%w: batch payload is %T", ErrMalformed, payload)}
	}
	cmds = make([]Command, 0, len(items))
	for i, item := range items {
		env, err := DecodeEnvelope(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("batch[%d]: %w", i, err))
			continue
		}
		cmd, err := DecodeCommand(env)
		if err != nil {
			errs = append(errs, fmt.Errorf("batch[%d]: %w", i, err))
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds, errs
}

var commandFactories = map[CommandType]func() any{
	TypeCreateInstance:     func() any { return &CreateInstance{} },
	TypeCreateTextInstance: func() any { return &CreateTextInstance{} },
	TypeAppendChild:        func() any { return &AppendChild{} },
	TypeInsertBefore:       func() any { return &InsertBefore{} },
	TypeRemoveChild:        func() any { return &RemoveChild{} },
	TypeUpdateProps:        func() any { return &UpdateProps{} },
	TypeUpdateText:         func() any { return &UpdateText{} },
	TypeReplaceChildren:    func() any { return &ReplaceChildren{} },
	TypeClearContainer:     func() any { return &ClearContainer{} },
	TypeShowToast:          func() any { return &ShowToast{} },
	TypeUpdateToast:        func() any { return &UpdateToast{} },
	TypeHideToast:          func() any { return &HideToast{} },
}

var requiredKeys = map[CommandType][]string{
	TypeCreateInstance:     {"id", "type"},
	TypeCreateTextInstance: {"id"},
	TypeAppendChild:        {"parentId", "childId"},
	TypeInsertBefore:       {"parentId", "childId", "beforeId"},
	TypeRemoveChild:        {"parentId", "childId"},
	TypeUpdateProps:        {"id"},
	TypeUpdateText:         {"id", "text"},
	TypeReplaceChildren:    {"parentId", "childrenIds"},
	TypeClearContainer:     {"containerId"},
	TypeShowToast:          {"id"},
	TypeUpdateToast:        {"id"},
	TypeHideToast:          {"id"},
}

var parentIDType = reflect.TypeOf(ParentID{})

func parentIDHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != parentIDType {
		return data, nil
	}
	return ParseParentID(data)
}

// DecodeMap decodes a generic map into a mapstructure-tagged struct with
// the same hooks the Command decoder uses.
func DecodeMap(input any, out any) error {
	return decodeInto(input, out)
}

func decodeInto(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: parentIDHook,
		Result:     out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

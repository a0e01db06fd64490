package codec

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/tinylib/msgp/msgp"
)

// ErrUnsupported is returned when a value has no MessagePack representation.
var ErrUnsupported = errors.New("codec: unsupported value")

const (
	// MarkerKey tags a serialized UI description nested inside props.
	MarkerKey = "$$typeof"
	// ElementMarker is the MarkerKey value of a serialized UI description.
	ElementMarker = "element.serialized"
	// CallableMarker replaces a live callable on the wire.
	CallableMarker = true
)

// Describer is implemented by UI descriptions that may appear as prop values.
type Describer interface {
	Describe() map[string]any
}

// Marshal encodes v as a single MessagePack object.
// Accepted values are nil, booleans, numbers, strings, []byte, and maps with
// string keys or slices built from those.
func Marshal(v any) ([]byte, error) {
	b, err := msgp.AppendIntf(nil, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return b, nil
}

// Unmarshal decodes exactly one MessagePack object.
// Maps come back as map[string]any, arrays as []any, integers as int64 or uint64.
func Unmarshal(data []byte) (any, error) {
	v, rest, err := msgp.ReadIntfBytes(data)
	if err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("codec: %d trailing bytes after object", len(rest))
	}
	return v, nil
}

// Check reports whether v has a wire form once escaped. It fails with
// ErrUnsupported for values such as structs, channels and maps with
// non-string keys.
func Check(v any) error {
	_, err := Marshal(Escape(v))
	return err
}

// SerializeProps returns the wire form of a prop bag.
// The "children" key is dropped; every value goes through Escape.
func SerializeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == "children" {
			continue
		}
		out[k] = Escape(v)
	}
	return out
}

// Escape rewrites a value into something Marshal accepts:
// callables become CallableMarker, Describers become their description,
// typed maps and slices are walked element-wise.
func Escape(v any) any {
	switch t := v.(type) {
	case nil, bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case Describer:
		return t.Describe()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Escape(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Escape(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		if rv.IsNil() {
			return nil
		}
		return CallableMarker
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Escape(rv.Elem().Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Escape(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Escape(rv.Index(i).Interface())
		}
		return out
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

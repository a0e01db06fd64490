package plugin

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// ErrNotCallable is returned when a dispatched handler is not a function.
var ErrNotCallable = errors.New("plugin: handler is not callable")

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// invoke calls fn with args coerced to its parameter types. Missing
// arguments are zero values, extra ones are dropped. A trailing error
// result is returned.
func invoke(fn any, args []any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("%w: %T", ErrNotCallable, fn)
	}
	t := v.Type()

	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
	}
	in := make([]reflect.Value, 0, t.NumIn())
	for i := 0; i < fixed; i++ {
		var arg any
		if i < len(args) {
			arg = args[i]
		}
		cv, err := coerce(arg, t.In(i))
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, cv)
	}
	if t.IsVariadic() {
		elem := t.In(fixed).Elem()
		for i := fixed; i < len(args); i++ {
			cv, err := coerce(args[i], elem)
			if err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
			in = append(in, cv)
		}
	}

	out := v.Call(in)
	if n := len(out); n > 0 && t.Out(n-1) == errorType && !out[n-1].IsNil() {
		return out[n-1].Interface().(error)
	}
	return nil
}

func coerce(arg any, to reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(to), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(to) {
		return v, nil
	}
	if numeric(v.Kind()) && numeric(to.Kind()) {
		return v.Convert(to), nil
	}

	out := reflect.New(to)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out.Interface(),
	})
	if err != nil {
		return reflect.Value{}, err
	}
	if err := dec.Decode(arg); err != nil {
		return reflect.Value{}, err
	}
	return out.Elem(), nil
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

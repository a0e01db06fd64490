package protocol

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// RootID is the reserved wire id of the synthetic container.
const RootID = "root"

// ParentID addresses a membership target: either the root container or a node.
// The zero value is not a valid parent.
type ParentID struct {
	root bool
	id   int64
}

// Root is the container whose single child is the current top-level node.
var Root = ParentID{root: true}

// Parent returns the ParentID of node id.
func Parent(id int64) ParentID {
	return ParentID{id: id}
}

// IsRoot reports whether p is the root container.
func (p ParentID) IsRoot() bool { return p.root }

// ID returns the node id. It is zero for the root.
func (p ParentID) ID() int64 { return p.id }

// Wire returns "root" or the integer node id.
func (p ParentID) Wire() any {
	if p.root {
		return RootID
	}
	return p.id
}

func (p ParentID) String() string {
	if p.root {
		return RootID
	}
	return strconv.FormatInt(p.id, 10)
}

// ParseParentID accepts the reserved string "root" or any integral number.
func ParseParentID(v any) (ParentID, error) {
	switch t := v.(type) {
	case ParentID:
		return t, nil
	case string:
		if t == RootID {
			return Root, nil
		}
		id, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return ParentID{}, fmt.Errorf("%w: parent id %q", ErrMalformed, t)
		}
		return Parent(id), nil
	}
	id, err := toInt64(v)
	if err != nil {
		return ParentID{}, fmt.Errorf("%w: parent id: %v", ErrMalformed, err)
	}
	return Parent(id), nil
}

func toInt64(v any) (int64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("id %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("id %v is not integral", f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("unexpected id type %T", v)
}

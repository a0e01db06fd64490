package ui

import (
	"github.com/aretw0/lattice/pkg/codec"
)

// Props is a node's attribute bag. Values may be plain data, callables
// (kept live on the plugin side), or Elements realized as named children.
type Props map[string]any

// Element is an immutable UI description.
type Element struct {
	Kind     string
	Key      string
	Props    Props
	Children []Element
	// Text is the payload of a KindText element.
	Text string
}

// Component produces the current description of a view.
type Component func() Element

// New describes a node of the given kind.
func New(kind string, props Props, children ...Element) Element {
	return Element{Kind: kind, Props: props, Children: children}
}

// TextNode describes a text leaf.
func TextNode(s string) Element {
	return Element{Kind: KindText, Text: s}
}

// Fragment groups children without introducing a node.
func Fragment(children ...Element) Element {
	return Element{Kind: KindFragment, Children: children}
}

// Static wraps a fixed description as a Component.
func Static(e Element) Component {
	return func() Element { return e }
}

// WithKey returns a copy of e with an explicit reconciliation key.
func (e Element) WithKey(key string) Element {
	e.Key = key
	return e
}

// IsZero reports whether e describes nothing. Zero children are skipped.
func (e Element) IsZero() bool {
	return e.Kind == ""
}

// Describe returns the wire form used when an Element is nested inside a
// serialized prop value.
func (e Element) Describe() map[string]any {
	return map[string]any{
		codec.MarkerKey: codec.ElementMarker,
		"type":          e.Kind,
		"props":         codec.SerializeProps(e.Props),
	}
}

// Flatten expands fragments and drops zero elements.
func Flatten(children []Element) []Element {
	out := make([]Element, 0, len(children))
	for _, c := range children {
		switch {
		case c.IsZero():
		case c.Kind == KindFragment:
			out = append(out, Flatten(c.Children)...)
		default:
			out = append(out, c)
		}
	}
	return out
}

// If returns e when cond holds and the zero Element otherwise.
func If(cond bool, e Element) Element {
	if cond {
		return e
	}
	return Element{}
}

// Map builds one Element per item.
func Map[T any](items []T, fn func(int, T) Element) []Element {
	out := make([]Element, len(items))
	for i, it := range items {
		out[i] = fn(i, it)
	}
	return out
}

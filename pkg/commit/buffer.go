package commit

import (
	"slices"

	"github.com/aretw0/lattice/pkg/protocol"
)

// Threshold is the number of membership ops one parent may carry in a batch
// before they are collapsed into a REPLACE_CHILDREN.
const Threshold = 10

// ChildLookup resolves a parent's final children order in the live tree.
type ChildLookup interface {
	ChildrenOf(parent protocol.ParentID) ([]int64, bool)
}

// Buffer accumulates the Commands of one render pass. Not safe for concurrent use;
// the plugin's UI loop owns it.
type Buffer struct {
	cmds      []protocol.Command
	threshold int
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithThreshold overrides Threshold.
func WithThreshold(n int) Option {
	return func(b *Buffer) {
		b.threshold = n
	}
}

// NewBuffer creates an empty buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{threshold: Threshold}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends c in emission order.
func (b *Buffer) Add(c protocol.Command) {
	b.cmds = append(b.cmds, c)
}

// Len returns the number of buffered Commands.
func (b *Buffer) Len() int {
	return len(b.cmds)
}

// Flush optimizes the buffered Commands against lookup and empties the buffer.
func (b *Buffer) Flush(lookup ChildLookup) []protocol.Command {
	if len(b.cmds) == 0 {
		return nil
	}
	out := optimize(b.cmds, lookup, b.threshold)
	b.cmds = nil
	return out
}

// Optimize applies the default threshold.
func Optimize(cmds []protocol.Command, lookup ChildLookup) []protocol.Command {
	return optimize(cmds, lookup, Threshold)
}

func optimize(cmds []protocol.Command, lookup ChildLookup, threshold int) []protocol.Command {
	var (
		other   []protocol.Command
		order   []protocol.ParentID
		byGroup = make(map[protocol.ParentID][]protocol.Command)
	)
	for _, c := range cmds {
		parent, ok := protocol.Membership(c)
		if !ok {
			other = append(other, c)
			continue
		}
		if _, seen := byGroup[parent]; !seen {
			order = append(order, parent)
		}
		byGroup[parent] = append(byGroup[parent], c)
	}
	if len(order) == 0 {
		return cmds
	}

	out := make([]protocol.Command, 0, len(cmds))
	out = append(out, other...)
	for _, parent := range order {
		ops := byGroup[parent]
		if len(ops) > threshold {
			if children, ok := lookup.ChildrenOf(parent); ok {
				out = append(out, protocol.ReplaceChildren{
					ParentID:    parent,
					ChildrenIDs: slices.Clone(children),
				})
				continue
			}
		}
		out = append(out, ops...)
	}
	return out
}

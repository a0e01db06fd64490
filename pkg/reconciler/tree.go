package reconciler

import (
	"slices"
	"sync/atomic"

	"github.com/aretw0/lattice/pkg/protocol"
)

// Instance is the plugin-side record of a node that has been sent to the host.
// Props holds the wire form only; live values sit in the Tree's side-table.
type Instance struct {
	ID            int64
	Kind          string
	Key           string
	Text          string
	Props         map[string]any
	Children      []int64
	NamedChildren map[string]int64

	// fingerprints of the descriptions last realized into each named slot
	slots map[string]any
}

// Tree is the retained instance tree. Only the UI loop mutates it.
type Tree struct {
	nodes  map[int64]*Instance
	live   map[int64]map[string]any
	root   []int64
	nextID atomic.Int64
}

// NewTree returns an empty tree. The first id handed out is 1.
func NewTree() *Tree {
	return &Tree{
		nodes: make(map[int64]*Instance),
		live:  make(map[int64]map[string]any),
	}
}

// NextID allocates a process-unique id. Safe for concurrent use.
func (t *Tree) NextID() int64 {
	return t.nextID.Add(1)
}

// ChildrenOf returns the current children order of parent.
func (t *Tree) ChildrenOf(parent protocol.ParentID) ([]int64, bool) {
	if parent.IsRoot() {
		return t.root, true
	}
	inst, ok := t.nodes[parent.ID()]
	if !ok {
		return nil, false
	}
	return inst.Children, true
}

// Root returns the ids attached to the root container.
func (t *Tree) Root() []int64 {
	return slices.Clone(t.root)
}

// Get returns the instance with the given id. Callers must not mutate it.
func (t *Tree) Get(id int64) (*Instance, bool) {
	inst, ok := t.nodes[id]
	return inst, ok
}

// Len returns the number of live instances.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Handler returns the live value of prop name on node id.
func (t *Tree) Handler(id int64, name string) (any, bool) {
	props, ok := t.live[id]
	if !ok {
		return nil, false
	}
	v, ok := props[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (t *Tree) childrenRef(parent protocol.ParentID) *[]int64 {
	if parent.IsRoot() {
		return &t.root
	}
	inst, ok := t.nodes[parent.ID()]
	if !ok {
		return nil
	}
	return &inst.Children
}

// drop forgets id and everything below it, named slots included.
func (t *Tree) drop(id int64) {
	inst, ok := t.nodes[id]
	if !ok {
		return
	}
	delete(t.nodes, id)
	delete(t.live, id)
	for _, child := range inst.Children {
		t.drop(child)
	}
	for _, child := range inst.NamedChildren {
		t.drop(child)
	}
}

func (t *Tree) reset() {
	t.nodes = make(map[int64]*Instance)
	t.live = make(map[int64]map[string]any)
	t.root = nil
}

func without(ids []int64, id int64) []int64 {
	return slices.DeleteFunc(ids, func(x int64) bool { return x == id })
}

package hoststore

import (
	"maps"
	"slices"

	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/aretw0/lattice/pkg/ui"
)

// Node is the host's copy of a plugin node. Nodes reachable from a Snapshot
// are shared between snapshots and must be treated as read-only.
type Node struct {
	ID            int64
	Kind          string
	Text          string
	Props         map[string]any
	Children      []int64
	NamedChildren map[string]int64
}

// IsText reports whether n is a text leaf.
func (n *Node) IsText() bool {
	return n.Kind == ui.KindText
}

// Title returns the node's title prop, if it is a string.
func (n *Node) Title() string {
	s, _ := n.Props["title"].(string)
	return s
}

func (n *Node) clone() *Node {
	c := *n
	c.Props = maps.Clone(n.Props)
	if c.Props == nil {
		c.Props = map[string]any{}
	}
	c.Children = slices.Clone(n.Children)
	c.NamedChildren = maps.Clone(n.NamedChildren)
	return &c
}

// Toast is a notification shown by the plugin.
type Toast struct {
	ID              int64
	Style           string
	Title           string
	Message         string
	PrimaryAction   *protocol.ToastAction
	SecondaryAction *protocol.ToastAction
}

// Snapshot is an immutable view of the tree after a batch. Zero ids mean
// "none": plugin ids start at 1.
type Snapshot struct {
	Version uint64
	Root    int64
	Nodes   map[int64]*Node
	Toasts  map[int64]*Toast

	// Items lists selectable entries in document order.
	Items     []int64
	Selected  int64
	Primary   int64
	Secondary int64
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Nodes:  map[int64]*Node{},
		Toasts: map[int64]*Toast{},
	}
}

// Node returns the node with the given id.
func (s *Snapshot) Node(id int64) (*Node, bool) {
	n, ok := s.Nodes[id]
	return n, ok
}

// TopLevel returns the root container's child.
func (s *Snapshot) TopLevel() (*Node, bool) {
	if s.Root == 0 {
		return nil, false
	}
	return s.Node(s.Root)
}

// Walk visits node id and its descendants depth first: named slots in sorted
// order first, then children. Returning false skips a node's subtree.
func (s *Snapshot) Walk(id int64, visit func(n *Node, depth int) bool) {
	s.walk(id, 0, visit, map[int64]bool{})
}

func (s *Snapshot) walk(id int64, depth int, visit func(*Node, int) bool, seen map[int64]bool) {
	n, ok := s.Nodes[id]
	if !ok || seen[id] {
		return
	}
	seen[id] = true
	if !visit(n, depth) {
		return
	}
	for _, slot := range sortedSlots(n.NamedChildren) {
		s.walk(n.NamedChildren[slot], depth+1, visit, seen)
	}
	for _, c := range n.Children {
		s.walk(c, depth+1, visit, seen)
	}
}

// withSelection returns a copy of s with selection moved to id and the
// action roles recomputed.
func (s *Snapshot) withSelection(id int64) *Snapshot {
	next := *s
	next.Selected = id
	next.Primary, next.Secondary = s.actionRoles(id)
	return &next
}

// derive recomputes items, selection and action roles. prev is the
// selection to keep if it is still a selectable item.
func (s *Snapshot) derive(prev int64) {
	s.Items = s.items()
	s.Selected = 0
	for _, id := range s.Items {
		if id == prev {
			s.Selected = id
			break
		}
	}
	if s.Selected == 0 && len(s.Items) > 0 {
		s.Selected = s.Items[0]
	}
	s.Primary, s.Secondary = s.actionRoles(s.Selected)
}

func (s *Snapshot) items() []int64 {
	var out []int64
	seen := map[int64]bool{}
	var visit func(id int64)
	visit = func(id int64) {
		n, ok := s.Nodes[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		if ui.IsItem(n.Kind) {
			out = append(out, id)
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	if s.Root != 0 {
		visit(s.Root)
	}
	return out
}

// actionRoles finds the first two actions in the "actions" slot of the
// selected item, or of the top-level node when nothing is selected.
func (s *Snapshot) actionRoles(selected int64) (primary, secondary int64) {
	owner := selected
	if owner == 0 {
		owner = s.Root
	}
	n, ok := s.Nodes[owner]
	if !ok {
		return 0, 0
	}
	panel, ok := n.NamedChildren["actions"]
	if !ok {
		return 0, 0
	}

	var found []int64
	seen := map[int64]bool{}
	var collect func(id int64)
	collect = func(id int64) {
		n, ok := s.Nodes[id]
		if !ok || seen[id] || len(found) >= 2 {
			return
		}
		seen[id] = true
		switch {
		case ui.IsAction(n.Kind), n.Kind == ui.KindActionPanelSubmenu:
			found = append(found, id)
		case n.Kind == ui.KindActionPanel, n.Kind == ui.KindActionPanelSection:
			for _, c := range n.Children {
				collect(c)
			}
		}
	}
	collect(panel)

	if len(found) > 0 {
		primary = found[0]
	}
	if len(found) > 1 {
		secondary = found[1]
	}
	return primary, secondary
}

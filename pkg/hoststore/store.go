package hoststore

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/aretw0/lattice/pkg/ui"
)

// Store rebuilds the plugin's tree from Commands. Apply is the only way
// the tree changes; readers take immutable Snapshots.
type Store struct {
	mu     sync.RWMutex
	snap   *Snapshot
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for skipped commands.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		snap:   emptySnapshot(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current tree.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Apply runs one batch against a copy-on-write overlay of the current
// snapshot and publishes the result. Commands naming unknown nodes are
// skipped. A batch that detaches any node is followed by a prune of
// everything no longer reachable from the root.
func (s *Store) Apply(cmds []protocol.Command) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := newBatch(s.snap, s.logger)
	for _, c := range cmds {
		b.apply(c)
	}

	next := b.result()
	if b.detached {
		prune(next)
	}
	next.derive(s.snap.Selected)
	s.snap = next
	return next
}

// Reset drops the whole tree, as when a different plugin starts.
func (s *Store) Reset() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := emptySnapshot()
	next.Version = s.snap.Version + 1
	s.snap = next
	return next
}

// Select moves the selection to id. It reports false if id is not a
// selectable item.
func (s *Store) Select(id int64) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.snap.Items, id) {
		return s.snap, false
	}
	s.snap = s.snap.withSelection(id)
	return s.snap, true
}

// SelectNext moves the selection one item down, wrapping around.
func (s *Store) SelectNext() *Snapshot {
	return s.step(1)
}

// SelectPrev moves the selection one item up, wrapping around.
func (s *Store) SelectPrev() *Snapshot {
	return s.step(-1)
}

func (s *Store) step(delta int) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.snap.Items
	if len(items) == 0 {
		return s.snap
	}
	i := slices.Index(items, s.snap.Selected)
	if i < 0 {
		i = 0
	} else {
		i = (i + delta + len(items)) % len(items)
	}
	s.snap = s.snap.withSelection(items[i])
	return s.snap
}

// batch is the overlay one Apply works on.
type batch struct {
	prev   *Snapshot
	nodes  map[int64]*Node
	owned  map[int64]bool
	toasts map[int64]*Toast
	copied bool
	root   int64
	logger *slog.Logger

	// detached is set once a command may have left a subtree unreachable.
	detached bool
}

func newBatch(prev *Snapshot, logger *slog.Logger) *batch {
	return &batch{
		prev:   prev,
		nodes:  maps.Clone(prev.Nodes),
		owned:  map[int64]bool{},
		toasts: prev.Toasts,
		root:   prev.Root,
		logger: logger,
	}
}

func (b *batch) result() *Snapshot {
	return &Snapshot{
		Version: b.prev.Version + 1,
		Root:    b.root,
		Nodes:   b.nodes,
		Toasts:  b.toasts,
	}
}

// mutable returns a node this batch may change, cloning it on first use.
func (b *batch) mutable(id int64) (*Node, bool) {
	n, ok := b.nodes[id]
	if !ok {
		return nil, false
	}
	if !b.owned[id] {
		n = n.clone()
		b.nodes[id] = n
		b.owned[id] = true
	}
	return n, true
}

func (b *batch) parent(p protocol.ParentID, c protocol.Command) (*Node, bool) {
	n, ok := b.mutable(p.ID())
	if !ok {
		b.logger.Debug("skipping command for unknown parent", "type", c.Type(), "parent", p.String())
	}
	return n, ok
}

func (b *batch) mutableToasts() map[int64]*Toast {
	if !b.copied {
		b.toasts = maps.Clone(b.toasts)
		if b.toasts == nil {
			b.toasts = map[int64]*Toast{}
		}
		b.copied = true
	}
	return b.toasts
}

func (b *batch) apply(c protocol.Command) {
	switch t := c.(type) {
	case protocol.CreateInstance:
		b.nodes[t.ID] = &Node{
			ID:            t.ID,
			Kind:          t.Kind,
			Props:         orEmpty(t.Props),
			Children:      slices.Clone(t.Children),
			NamedChildren: maps.Clone(t.NamedChildren),
		}
		b.owned[t.ID] = true

	case protocol.CreateTextInstance:
		b.nodes[t.ID] = &Node{ID: t.ID, Kind: ui.KindText, Text: t.Text, Props: map[string]any{}}
		b.owned[t.ID] = true

	case protocol.UpdateProps:
		n, ok := b.mutable(t.ID)
		if !ok {
			b.logger.Debug("skipping update for unknown node", "id", t.ID)
			return
		}
		n.Props = orEmpty(maps.Clone(t.Props))
		if t.NamedChildren != nil {
			for slot, id := range n.NamedChildren {
				if t.NamedChildren[slot] != id {
					b.detached = true
				}
			}
			n.NamedChildren = maps.Clone(t.NamedChildren)
		}

	case protocol.UpdateText:
		n, ok := b.mutable(t.ID)
		if !ok {
			b.logger.Debug("skipping text update for unknown node", "id", t.ID)
			return
		}
		n.Text = t.Text

	case protocol.AppendChild:
		if t.ParentID.IsRoot() {
			b.setRoot(t.ChildID)
			return
		}
		if n, ok := b.parent(t.ParentID, c); ok {
			n.Children = append(without(n.Children, t.ChildID), t.ChildID)
		}

	case protocol.InsertBefore:
		if t.ParentID.IsRoot() {
			b.setRoot(t.ChildID)
			return
		}
		if n, ok := b.parent(t.ParentID, c); ok {
			kids := without(n.Children, t.ChildID)
			if i := slices.Index(kids, t.BeforeID); i >= 0 {
				n.Children = slices.Insert(kids, i, t.ChildID)
			} else {
				n.Children = append(kids, t.ChildID)
			}
		}

	case protocol.RemoveChild:
		if t.ParentID.IsRoot() {
			if b.root == t.ChildID {
				b.setRoot(0)
			}
			return
		}
		if n, ok := b.parent(t.ParentID, c); ok && slices.Contains(n.Children, t.ChildID) {
			n.Children = without(n.Children, t.ChildID)
			b.detached = true
		}

	case protocol.ReplaceChildren:
		if t.ParentID.IsRoot() {
			var id int64
			if k := len(t.ChildrenIDs); k > 0 {
				id = t.ChildrenIDs[k-1]
			}
			b.setRoot(id)
			return
		}
		if n, ok := b.parent(t.ParentID, c); ok {
			for _, id := range n.Children {
				if !slices.Contains(t.ChildrenIDs, id) {
					b.detached = true
				}
			}
			n.Children = slices.Clone(t.ChildrenIDs)
		}

	case protocol.ClearContainer:
		if t.ContainerID == protocol.RootID {
			b.setRoot(0)
			b.detached = true
			return
		}
		b.logger.Debug("ignoring clear of unknown container", "container", t.ContainerID)

	case protocol.ShowToast:
		b.mutableToasts()[t.ID] = &Toast{
			ID:              t.ID,
			Style:           t.Style,
			Title:           t.Title,
			Message:         t.Message,
			PrimaryAction:   t.PrimaryAction,
			SecondaryAction: t.SecondaryAction,
		}

	case protocol.UpdateToast:
		old, ok := b.toasts[t.ID]
		if !ok {
			b.logger.Debug("skipping update for unknown toast", "id", t.ID)
			return
		}
		next := *old
		next.Title, next.Message = t.Title, t.Message
		if t.Style != "" {
			next.Style = t.Style
		}
		b.mutableToasts()[t.ID] = &next

	case protocol.HideToast:
		if _, ok := b.toasts[t.ID]; ok {
			delete(b.mutableToasts(), t.ID)
		}

	default:
		b.logger.Warn("skipping unsupported command", "type", c.Type())
	}
}

// setRoot replaces the top-level node, marking the batch when an old one
// falls off.
func (b *batch) setRoot(id int64) {
	if b.root != 0 && b.root != id {
		b.detached = true
	}
	b.root = id
}

// prune drops nodes no longer reachable from the root.
func prune(s *Snapshot) {
	keep := map[int64]bool{}
	if s.Root != 0 {
		s.Walk(s.Root, func(n *Node, _ int) bool {
			keep[n.ID] = true
			return true
		})
	}
	for id := range s.Nodes {
		if !keep[id] {
			delete(s.Nodes, id)
		}
	}
}

func without(ids []int64, id int64) []int64 {
	return slices.DeleteFunc(ids, func(v int64) bool { return v == id })
}

func orEmpty(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

func sortedSlots(m map[string]int64) []string {
	return slices.Sorted(maps.Keys(m))
}

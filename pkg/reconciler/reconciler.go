package reconciler

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/codec"
	"github.com/aretw0/lattice/pkg/commit"
	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/aretw0/lattice/pkg/ui"
)

var (
	// ErrElementArrayProp rejects a prop holding a list of UI elements.
	ErrElementArrayProp = errors.New("reconciler: array prop contains UI elements")
	// ErrUnknownKind rejects a node kind outside the vocabulary.
	ErrUnknownKind = errors.New("reconciler: unknown node kind")
)

// Reconciler turns successive UI descriptions into Commands against its Tree.
type Reconciler struct {
	tree   *Tree
	buf    *commit.Buffer
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger configures a logger for the Reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithBuffer replaces the default commit buffer.
func WithBuffer(buf *commit.Buffer) Option {
	return func(r *Reconciler) {
		r.buf = buf
	}
}

// New creates a Reconciler with an empty tree.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		tree:   NewTree(),
		buf:    commit.NewBuffer(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tree returns the retained tree.
func (r *Reconciler) Tree() *Tree {
	return r.tree
}

// Render reconciles the root container against el and returns the optimized
// batch for this pass. An invalid description is rejected before anything
// is mutated.
func (r *Reconciler) Render(el ui.Element) ([]protocol.Command, error) {
	roots := ui.Flatten([]ui.Element{el})
	if err := validate(roots); err != nil {
		return nil, err
	}
	r.reconcileChildren(protocol.Root, roots)
	out := r.buf.Flush(r.tree)
	r.logger.Debug("render pass", "commands", len(out), "instances", r.tree.Len())
	return out, nil
}

// Clear empties the root container with a single CLEAR_CONTAINER.
func (r *Reconciler) Clear() []protocol.Command {
	r.buf.Add(protocol.ClearContainer{ContainerID: protocol.RootID})
	r.tree.reset()
	return r.buf.Flush(r.tree)
}

func (r *Reconciler) emit(c protocol.Command) {
	r.buf.Add(c)
}

func (r *Reconciler) reconcileChildren(parent protocol.ParentID, els []ui.Element) {
	ref := r.tree.childrenRef(parent)
	if ref == nil {
		return
	}
	old := slices.Clone(*ref)
	oldIndex := make(map[int64]int, len(old))
	byKey := make(map[string]int64, len(old))
	for i, id := range old {
		oldIndex[id] = i
		if inst, ok := r.tree.nodes[id]; ok {
			if _, dup := byKey[inst.Key]; !dup {
				byKey[inst.Key] = id
			}
		}
	}

	next := make([]int64, len(els))
	reused := make(map[int64]bool, len(old))
	for i, el := range els {
		key := effectiveKey(el, i)
		if id, ok := byKey[key]; ok && !reused[id] && r.tree.nodes[id].Kind == el.Kind {
			reused[id] = true
			r.update(r.tree.nodes[id], el)
			next[i] = id
			continue
		}
		next[i] = r.mount(el, key)
	}

	for _, id := range old {
		if !reused[id] {
			r.removeChild(parent, id)
		}
	}

	// Reused nodes whose old positions still increase stay put; everything
	// else is placed right to left before its successor.
	move := make([]bool, len(next))
	lastPlaced := -1
	for i, id := range next {
		oi, wasOld := oldIndex[id]
		switch {
		case !wasOld || !reused[id]:
			move[i] = true
		case oi < lastPlaced:
			move[i] = true
		default:
			lastPlaced = oi
		}
	}
	for i := len(next) - 1; i >= 0; i-- {
		if !move[i] {
			continue
		}
		if i+1 < len(next) {
			r.insertBefore(parent, next[i], next[i+1])
		} else {
			r.appendChild(parent, next[i])
		}
	}
}

func (r *Reconciler) mount(el ui.Element, key string) int64 {
	id := r.tree.NextID()
	inst := &Instance{ID: id, Kind: el.Kind, Key: key}
	r.tree.nodes[id] = inst

	if el.Kind == ui.KindText {
		inst.Text = el.Text
		r.emit(protocol.CreateTextInstance{ID: id, Text: el.Text})
		return id
	}

	wire, live, named := splitProps(el.Props)
	inst.Props = wire
	inst.NamedChildren = make(map[string]int64, len(named))
	inst.slots = make(map[string]any, len(named))
	for _, slot := range sortedKeys(named) {
		child := named[slot]
		inst.NamedChildren[slot] = r.mount(child, slotKey(slot))
		inst.slots[slot] = fingerprint(child)
	}
	r.tree.live[id] = live

	r.emit(protocol.CreateInstance{
		ID:            id,
		Kind:          el.Kind,
		Props:         wire,
		NamedChildren: maps.Clone(inst.NamedChildren),
	})

	for i, child := range ui.Flatten(el.Children) {
		childID := r.mount(child, effectiveKey(child, i))
		r.appendChild(protocol.Parent(id), childID)
	}
	return id
}

func (r *Reconciler) update(inst *Instance, el ui.Element) {
	if inst.Kind == ui.KindText {
		if inst.Text != el.Text {
			inst.Text = el.Text
			r.emit(protocol.UpdateText{ID: inst.ID, Text: el.Text})
		}
		return
	}

	wire, live, named := splitProps(el.Props)
	r.tree.live[inst.ID] = live

	changed := false
	nextNamed := make(map[string]int64, len(named))
	nextSlots := make(map[string]any, len(named))
	for _, slot := range sortedKeys(named) {
		child := named[slot]
		fp := fingerprint(child)
		oldID, had := inst.NamedChildren[slot]
		if had && reflect.DeepEqual(inst.slots[slot], fp) {
			nextNamed[slot] = oldID
			nextSlots[slot] = fp
			r.refresh(oldID, child)
			continue
		}
		if had {
			r.tree.drop(oldID)
		}
		nextNamed[slot] = r.mount(child, slotKey(slot))
		nextSlots[slot] = fp
		changed = true
	}
	for slot, oldID := range inst.NamedChildren {
		if _, keep := named[slot]; !keep {
			r.tree.drop(oldID)
			changed = true
		}
	}
	inst.NamedChildren = nextNamed
	inst.slots = nextSlots

	if changed || !reflect.DeepEqual(wire, inst.Props) {
		inst.Props = wire
		r.emit(protocol.UpdateProps{ID: inst.ID, Props: wire, NamedChildren: maps.Clone(nextNamed)})
	}

	r.reconcileChildren(protocol.Parent(inst.ID), ui.Flatten(el.Children))
}

// refresh swaps in the live props of an unchanged subtree without emitting.
func (r *Reconciler) refresh(id int64, el ui.Element) {
	inst, ok := r.tree.nodes[id]
	if !ok || inst.Kind == ui.KindText {
		return
	}
	_, live, named := splitProps(el.Props)
	r.tree.live[id] = live
	for slot, child := range named {
		if childID, ok := inst.NamedChildren[slot]; ok {
			r.refresh(childID, child)
		}
	}
	kids := ui.Flatten(el.Children)
	for i, childID := range inst.Children {
		if i < len(kids) {
			r.refresh(childID, kids[i])
		}
	}
}

func (r *Reconciler) appendChild(parent protocol.ParentID, child int64) {
	ref := r.tree.childrenRef(parent)
	if ref == nil {
		return
	}
	*ref = append(without(*ref, child), child)
	r.emit(protocol.AppendChild{ParentID: parent, ChildID: child})
}

func (r *Reconciler) insertBefore(parent protocol.ParentID, child, before int64) {
	ref := r.tree.childrenRef(parent)
	if ref == nil {
		return
	}
	*ref = without(*ref, child)
	idx := slices.Index(*ref, before)
	if idx < 0 {
		*ref = append(*ref, child)
		r.emit(protocol.AppendChild{ParentID: parent, ChildID: child})
		return
	}
	*ref = slices.Insert(*ref, idx, child)
	r.emit(protocol.InsertBefore{ParentID: parent, ChildID: child, BeforeID: before})
}

func (r *Reconciler) removeChild(parent protocol.ParentID, child int64) {
	if ref := r.tree.childrenRef(parent); ref != nil {
		*ref = without(*ref, child)
	}
	r.emit(protocol.RemoveChild{ParentID: parent, ChildID: child})
	r.tree.drop(child)
}

func splitProps(props ui.Props) (wire, live map[string]any, named map[string]ui.Element) {
	live = make(map[string]any, len(props))
	plain := make(map[string]any, len(props))
	named = make(map[string]ui.Element)
	for k, v := range props {
		if k == "children" {
			continue
		}
		live[k] = v
		if el, ok := v.(ui.Element); ok {
			if !el.IsZero() {
				named[k] = el
			}
			continue
		}
		plain[k] = v
	}
	return codec.SerializeProps(plain), live, named
}

func fingerprint(el ui.Element) any {
	props := make(map[string]any, len(el.Props))
	for k, v := range el.Props {
		if k == "children" {
			continue
		}
		if child, ok := v.(ui.Element); ok {
			props[k] = fingerprint(child)
			continue
		}
		props[k] = codec.Escape(v)
	}
	kids := ui.Flatten(el.Children)
	children := make([]any, len(kids))
	for i, c := range kids {
		children[i] = fingerprint(c)
	}
	return map[string]any{
		"kind":     el.Kind,
		"key":      el.Key,
		"text":     el.Text,
		"props":    props,
		"children": children,
	}
}

func effectiveKey(el ui.Element, index int) string {
	if el.Key != "" {
		return "k:" + el.Key
	}
	return "i:" + strconv.Itoa(index)
}

func slotKey(slot string) string {
	return "slot:" + slot
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func validate(els []ui.Element) error {
	for _, el := range els {
		if el.Kind == ui.KindText {
			continue
		}
		if !ui.IsKnownKind(el.Kind) {
			return fmt.Errorf("%w: %q", ErrUnknownKind, el.Kind)
		}
		for name, v := range el.Props {
			if name == "children" {
				continue
			}
			if child, ok := v.(ui.Element); ok {
				if child.IsZero() {
					continue
				}
				if err := validate(ui.Flatten([]ui.Element{child})); err != nil {
					return err
				}
				if child.Kind == ui.KindFragment {
					return fmt.Errorf("%w: %s.%s holds a fragment", ErrElementArrayProp, el.Kind, name)
				}
				continue
			}
			if holdsElements(v) {
				return fmt.Errorf("%w: %s.%s", ErrElementArrayProp, el.Kind, name)
			}
			if err := codec.Check(v); err != nil {
				return fmt.Errorf("reconciler: %s.%s: %w", el.Kind, name, err)
			}
		}
		if err := validate(ui.Flatten(el.Children)); err != nil {
			return err
		}
	}
	return nil
}

func holdsElements(v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if _, ok := rv.Index(i).Interface().(ui.Element); ok {
			return true
		}
	}
	return false
}

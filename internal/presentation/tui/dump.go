// Package tui renders host trees for terminals.
package tui

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/aretw0/lattice/pkg/hoststore"
	"golang.org/x/term"
)

// Markdown renders snap as a nested list. The output depends only on the
// snapshot: slots come first in name order, then children in order.
func Markdown(snap *hoststore.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tree v%d\n\n", snap.Version)
	if _, ok := snap.TopLevel(); !ok {
		b.WriteString("_empty_\n")
	} else {
		writeNode(&b, snap, snap.Root, "", 0, map[int64]bool{})
	}

	if len(snap.Toasts) > 0 {
		b.WriteString("\n## Toasts\n\n")
		for _, id := range slices.Sorted(maps.Keys(snap.Toasts)) {
			t := snap.Toasts[id]
			fmt.Fprintf(&b, "- %s **%s**", t.Style, t.Title)
			if t.Message != "" {
				fmt.Fprintf(&b, ": %s", t.Message)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeNode(b *strings.Builder, snap *hoststore.Snapshot, id int64, slot string, depth int, seen map[int64]bool) {
	n, ok := snap.Node(id)
	if !ok || seen[id] {
		return
	}
	seen[id] = true

	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("- ")
	if slot != "" {
		b.WriteString(slot + ": ")
	}
	if n.IsText() {
		fmt.Fprintf(b, "%q", n.Text)
	} else {
		fmt.Fprintf(b, "`%s`", n.Kind)
	}
	fmt.Fprintf(b, " #%d", n.ID)
	if title := n.Title(); title != "" {
		fmt.Fprintf(b, " **%s**", title)
	}

	var marks []string
	if id == snap.Selected {
		marks = append(marks, "selected")
	}
	switch id {
	case snap.Primary:
		marks = append(marks, "primary")
	case snap.Secondary:
		marks = append(marks, "secondary")
	}
	if len(marks) > 0 {
		fmt.Fprintf(b, " _(%s)_", strings.Join(marks, ", "))
	}
	b.WriteString("\n")

	for _, name := range slices.Sorted(maps.Keys(n.NamedChildren)) {
		writeNode(b, snap, n.NamedChildren[name], name, depth+1, seen)
	}
	for _, c := range n.Children {
		writeNode(b, snap, c, "", depth+1, seen)
	}
}

// Printer writes tree dumps, styled with glamour when the output is a
// terminal.
type Printer struct {
	out    io.Writer
	render func(string) (string, error)
}

// NewPrinter creates a Printer for out.
func NewPrinter(out io.Writer) *Printer {
	p := &Printer{out: out}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if render, err := NewRenderer(); err == nil {
			p.render = render
		}
	}
	return p
}

// Print writes one snapshot.
func (p *Printer) Print(snap *hoststore.Snapshot) error {
	md := Markdown(snap)
	if p.render != nil {
		styled, err := p.render(md)
		if err == nil {
			md = styled
		}
	}
	_, err := io.WriteString(p.out, md)
	return err
}

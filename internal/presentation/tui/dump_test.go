package tui_test

import (
	"bytes"
	"testing"

	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/hoststore"
	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/aretw0/lattice/pkg/ui"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fruitTree() *hoststore.Snapshot {
	store := hoststore.New()
	return store.Apply([]protocol.Command{
		protocol.CreateInstance{ID: 1, Kind: ui.KindList, Children: []int64{2}},
		protocol.CreateInstance{ID: 2, Kind: ui.KindListSection, Props: map[string]any{"title": "Fruit"}, Children: []int64{3, 7}},
		protocol.CreateInstance{ID: 3, Kind: ui.KindListItem, Props: map[string]any{"title": "Apples"}, NamedChildren: map[string]int64{"actions": 4}},
		protocol.CreateInstance{ID: 4, Kind: ui.KindActionPanel, Children: []int64{5, 6}},
		protocol.CreateInstance{ID: 5, Kind: ui.KindAction, Props: map[string]any{"title": "Eat", "onAction": true}},
		protocol.CreateInstance{ID: 6, Kind: ui.KindActionCopy, Props: map[string]any{"title": "Copy", "content": "apples"}},
		protocol.CreateInstance{ID: 7, Kind: ui.KindListItem, Props: map[string]any{"title": "Pears"}, Children: []int64{8}},
		protocol.CreateTextInstance{ID: 8, Text: "ripe"},
		protocol.AppendChild{ParentID: protocol.Root, ChildID: 1},
		protocol.ShowToast{ID: 100, Style: "SUCCESS", Title: "Saved", Message: "All good"},
	})
}

func TestMarkdown_Golden(t *testing.T) {
	g := goldie.New(t)
	g.Assert(t, "fruit", []byte(tui.Markdown(fruitTree())))
}

func TestMarkdown_Empty(t *testing.T) {
	assert.Equal(t, "# Tree v0\n\n_empty_\n", tui.Markdown(hoststore.New().Snapshot()))
}

func TestPrinter_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	snap := fruitTree()
	require.NoError(t, tui.NewPrinter(&buf).Print(snap))
	assert.Equal(t, tui.Markdown(snap), buf.String())
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.Contains(t, buf.String(), `|____\__,_|\__|\__|_|\___\___|`)
}

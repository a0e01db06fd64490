package ui_test

import (
	"testing"

	"github.com/aretw0/lattice/pkg/codec"
	"github.com/aretw0/lattice/pkg/ui"
	"github.com/stretchr/testify/assert"
)

func TestFlatten(t *testing.T) {
	a := ui.ListItem(ui.Props{"title": "a"})
	b := ui.ListItem(ui.Props{"title": "b"})
	c := ui.ListItem(ui.Props{"title": "c"})

	got := ui.Flatten([]ui.Element{
		a,
		ui.If(false, ui.ListItem(nil)),
		ui.Fragment(b, ui.Fragment(c)),
	})

	assert.Equal(t, []ui.Element{a, b, c}, got)
}

func TestDescribe(t *testing.T) {
	el := ui.New(ui.KindDetailLabel, ui.Props{"title": "Code", "onClick": func() {}})

	d := el.Describe()
	assert.Equal(t, codec.ElementMarker, d[codec.MarkerKey])
	assert.Equal(t, ui.KindDetailLabel, d["type"])
	assert.Equal(t, map[string]any{"title": "Code", "onClick": true}, d["props"])
}

func TestKindClassification(t *testing.T) {
	assert.True(t, ui.IsAction(ui.KindAction))
	assert.True(t, ui.IsAction(ui.KindActionCopy))
	assert.False(t, ui.IsAction(ui.KindActionPanel))
	assert.False(t, ui.IsAction(ui.KindActionPanelSection))
	assert.True(t, ui.IsItem(ui.KindGridItem))
	assert.True(t, ui.IsKnownKind(ui.KindMenuBarExtraItem))
	assert.False(t, ui.IsKnownKind("Canvas"))
	assert.False(t, ui.IsKnownKind(ui.KindText))
}

func TestMap(t *testing.T) {
	items := ui.Map([]string{"x", "y"}, func(i int, s string) ui.Element {
		return ui.ListItem(ui.Props{"title": s}).WithKey(s)
	})
	assert.Len(t, items, 2)
	assert.Equal(t, "y", items[1].Key)
}

package ui

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konfevgas/web-gis-project/internal/config"
	"github.com/konfevgas/web-gis-project/internal/engine"
	"github.com/konfevgas/web-gis-project/internal/service"
)

func TestFromConfig(t *testing.T) {
	b := FromConfig(config.Default())

	assert.Len(t, b.Elements(), 15)
	e, ok := b.Element("carto-toggle")
	require.True(t, ok)
	assert.Equal(t, Radio, e.Kind)
	assert.Equal(t, "basemap", e.Name)

	e, _ = b.Element("roadsAll-toggle")
	assert.Equal(t, Checkbox, e.Kind)

	e, _ = b.Element("clicked-coordinates")
	assert.Equal(t, Text, e.Kind)
	assert.Equal(t, "-, -", e.Text)

	assert.Len(t, b.ControlIDs(), 11)
}

func TestRadioGroup(t *testing.T) {
	b := NewBoard(
		Element{ID: "a", Kind: Radio, Name: "g"},
		Element{ID: "b", Kind: Radio, Name: "g"},
		Element{ID: "c", Kind: Radio, Name: "other"},
	)
	require.NoError(t, b.SetChecked("a", true))
	require.NoError(t, b.SetChecked("c", true))
	require.NoError(t, b.SetChecked("b", true))

	assert.Equal(t, map[string]bool{"a": false, "b": true, "c": true}, b.Checked())
}

func TestChangeFiresListeners(t *testing.T) {
	b := NewBoard(
		Element{ID: "r", Kind: Radio, Name: "g"},
		Element{ID: "box", Kind: Checkbox},
		Element{ID: "btn", Kind: Button},
	)
	var got []bool
	require.NoError(t, b.OnChange("box", func(checked bool) { got = append(got, checked) }))
	require.NoError(t, b.OnChange("r", func(checked bool) { got = append(got, checked) }))

	require.NoError(t, b.Change("box", true))
	require.NoError(t, b.Change("box", false))
	// unchecking a radio directly is ignored
	require.NoError(t, b.Change("r", false))
	assert.Equal(t, []bool{true, false}, got)

	clicks := 0
	require.NoError(t, b.OnClick("btn", func() { clicks++ }))
	require.NoError(t, b.Click("btn"))
	assert.Equal(t, 1, clicks)
	assert.Equal(t, 1, b.Listeners("btn"))
}

func TestBoardErrors(t *testing.T) {
	b := NewBoard(Element{ID: "box", Kind: Checkbox}, Element{ID: "btn", Kind: Button})

	assert.ErrorIs(t, b.Change("missing", true), service.ErrUnknownControl)
	assert.ErrorIs(t, b.Click("missing"), service.ErrUnknownControl)
	assert.ErrorIs(t, b.SetText("missing", "x"), service.ErrUnknownControl)
	assert.Error(t, b.OnClick("box", func() {}))
	assert.Error(t, b.OnChange("btn", func(bool) {}))
	assert.Error(t, b.SetChecked("btn", true))
	assert.False(t, b.Has("missing"))
}

func newBoundSession(t *testing.T) (*service.MapSession, *engine.Stack, *Board) {
	t.Helper()
	m := config.Default()
	stack := engine.NewStack()
	s, err := service.NewMapSession(m, stack)
	require.NoError(t, err)

	b := FromConfig(m)
	require.NoError(t, s.BindControls(b, s.Bindings()))
	return s, stack, b
}

func TestBoundSession(t *testing.T) {
	s, stack, b := newBoundSession(t)

	checked := b.Checked()
	assert.True(t, checked["osm-toggle"])
	assert.False(t, checked["addresses-toggle"])

	require.NoError(t, b.Change("google-toggle", true))
	assert.Equal(t, "google", s.ActiveBasemap())
	assert.Equal(t, "google", stack.Snapshot()[0].ID)
	checked = b.Checked()
	assert.True(t, checked["google-toggle"])
	assert.False(t, checked["osm-toggle"])

	require.NoError(t, b.Change("roadsHighway-toggle", true))
	assert.True(t, stack.Visible("roads-highway"))
	assert.False(t, stack.Visible("roads-all"))

	// SetChecked from the session never re-enters listeners
	require.NoError(t, s.ToggleOverlay("roads-highway", false))
	assert.False(t, b.Checked()["roadsHighway-toggle"])
}

func TestBoundMarkerButtons(t *testing.T) {
	s, _, b := newBoundSession(t)

	s.Click(service.FromLonLat(orb.Point{13.1906, 55.7060}))
	e, _ := b.Element("clicked-coordinates")
	assert.Equal(t, "Clicked Coordinates: Lat/Lon: 55.7060000, 13.1906000", e.Text)

	s.Hover(service.FromLonLat(orb.Point{13.1906, 55.7060}))
	e, _ = b.Element("coord-text")
	assert.Equal(t, "55.7060, 13.1906", e.Text)

	require.NoError(t, b.Click("remove-marker"))
	e, _ = b.Element("clicked-coordinates")
	assert.Equal(t, "-, -", e.Text)
}

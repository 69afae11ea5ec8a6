package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konfevgas/web-gis-project/internal/config"
	"github.com/konfevgas/web-gis-project/internal/service"
)

func ids(states []LayerState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = s.ID
	}
	return out
}

func TestStackOrder(t *testing.T) {
	s := NewStack()
	a, err := s.NewLayer("a", service.Source{Kind: service.SourceTile})
	require.NoError(t, err)
	b, _ := s.NewLayer("b", service.Source{Kind: service.SourceWMS})
	c, _ := s.NewLayer("c", service.Source{Kind: service.SourceWMS})

	require.NoError(t, s.AddLayer(a))
	require.NoError(t, s.AddLayer(b))
	require.NoError(t, s.InsertLayerAt(1, c))
	assert.Equal(t, []string{"a", "c", "b"}, ids(s.Snapshot()))

	removed, err := s.RemoveLayerAt(0)
	require.NoError(t, err)
	assert.Equal(t, "a", removed.LayerID())
	assert.Equal(t, []string{"c", "b"}, ids(s.Snapshot()))
}

func TestStackErrors(t *testing.T) {
	s := NewStack()
	a, _ := s.NewLayer("a", service.Source{})

	_, err := s.NewLayer("a", service.Source{})
	assert.Error(t, err)

	assert.Error(t, s.InsertLayerAt(2, a))
	_, err = s.RemoveLayerAt(0)
	assert.Error(t, err)

	require.NoError(t, s.AddLayer(a))
	assert.Error(t, s.AddLayer(a), "double stacking")

	other := NewStack()
	foreign, _ := other.NewLayer("a", service.Source{})
	assert.Error(t, s.SetVisible(foreign, true))
}

func TestStackVisibility(t *testing.T) {
	s := NewStack()
	a, _ := s.NewLayer("a", service.Source{})
	assert.False(t, s.Visible("a"))

	require.NoError(t, s.SetVisible(a, true))
	assert.True(t, s.Visible("a"))
	assert.False(t, s.Visible("missing"))
}

func TestSessionOnStack(t *testing.T) {
	s := NewStack()
	sess, err := service.NewMapSession(config.Default(), s)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 9)
	assert.Equal(t, "osm", snap[0].ID)
	assert.True(t, snap[0].Visible)
	for _, l := range snap[1:] {
		assert.False(t, l.Visible, l.ID)
	}

	require.NoError(t, sess.SelectBasemap("carto"))
	snap = s.Snapshot()
	require.Len(t, snap, 9)
	assert.Equal(t, "carto", snap[0].ID)
	assert.True(t, snap[0].Visible)
	assert.False(t, s.Visible("osm"))
	assert.Equal(t, "addresses", snap[1].ID)

	require.NoError(t, sess.ToggleOverlay("districts", true))
	assert.True(t, s.Visible("districts"))
}

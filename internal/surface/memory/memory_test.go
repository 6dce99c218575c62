package memory

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/salonbook/mapsync/internal/surface"
	"github.com/salonbook/mapsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify Surface implements surface.Surface interface
var _ surface.Surface = (*Surface)(nil)

var rio = core.Position{Longitude: -43.2, Latitude: -22.9}

func TestNew(t *testing.T) {
	s := New(core.ViewOptions{AccessToken: "tok", Center: rio, Zoom: 11})

	require.NotNil(t, s)
	assert.Equal(t, "tok", s.Options().AccessToken)
	assert.Equal(t, Viewport{Center: rio, Zoom: 11}, s.Scene().Viewport)
	assert.Empty(t, s.Ops())
}

func TestCreateAndRemoveMarker(t *testing.T) {
	s := New(core.ViewOptions{})

	h := s.CreateMarker(rio, "Shop A")
	require.NotNil(t, h)

	m, ok := s.Marker(h)
	require.True(t, ok)
	assert.Equal(t, "Shop A", m.PopupText)
	assert.Equal(t, rio, m.Position)
	assert.False(t, m.PopupOpen)
	assert.Equal(t, "POINT(-43.2 -22.9)", m.WKT)

	s.RemoveMarker(h)
	_, ok = s.Marker(h)
	assert.False(t, ok)

	assert.Equal(t, 1, s.Count(OpCreate))
	assert.Equal(t, 1, s.Count(OpRemove))
}

func TestHandlesAreUnique(t *testing.T) {
	s := New(core.ViewOptions{})

	h1 := s.CreateMarker(rio, "A")
	h2 := s.CreateMarker(rio, "A")

	assert.NotEqual(t, h1.HandleID(), h2.HandleID())
	assert.Len(t, s.Scene().Markers, 2)
}

func TestTogglePopup(t *testing.T) {
	s := New(core.ViewOptions{})
	h := s.CreateMarker(rio, "A")

	s.TogglePopup(h)
	m, _ := s.Marker(h)
	assert.True(t, m.PopupOpen)

	s.TogglePopup(h)
	m, _ = s.Marker(h)
	assert.False(t, m.PopupOpen)
}

func TestAnimateCenter(t *testing.T) {
	s := New(core.ViewOptions{Zoom: 10})

	s.AnimateCenter(rio, 15, time.Second)

	assert.Equal(t, Viewport{Center: rio, Zoom: 15}, s.Scene().Viewport)
	ops := s.Ops()
	require.Len(t, ops, 1)
	assert.Equal(t, OpAnimate, ops[0].Kind)
	assert.Equal(t, time.Second, ops[0].Duration)
}

func TestDispose(t *testing.T) {
	s := New(core.ViewOptions{})
	s.CreateMarker(rio, "A")

	s.Dispose()
	s.Dispose()

	assert.True(t, s.Disposed())
	assert.Empty(t, s.Scene().Markers)
	assert.Equal(t, 1, s.Count(OpDispose))

	// calls after dispose are ignored
	h := s.CreateMarker(rio, "B")
	s.TogglePopup(h)
	s.AnimateCenter(rio, 3, 0)
	assert.Empty(t, s.Scene().Markers)
	assert.Equal(t, 1, s.Count(OpCreate))
}

func TestResetOps(t *testing.T) {
	s := New(core.ViewOptions{})
	s.CreateMarker(rio, "A")

	s.ResetOps()

	assert.Empty(t, s.Ops())
	assert.Len(t, s.Scene().Markers, 1)
}

func TestWriteJSON(t *testing.T) {
	s := New(core.ViewOptions{})
	s.CreateMarker(core.Position{Longitude: 1, Latitude: 2}, "B")
	s.CreateMarker(rio, "A")

	var buf bytes.Buffer
	require.NoError(t, s.WriteJSON(&buf))

	var scene Scene
	require.NoError(t, json.Unmarshal(buf.Bytes(), &scene))
	require.Len(t, scene.Markers, 2)
	assert.Equal(t, "A", scene.Markers[0].PopupText)
	assert.Equal(t, "B", scene.Markers[1].PopupText)
	assert.False(t, scene.Disposed)
}

// Package memory implements an in-process rendering surface that keeps the
// scene in memory and records every call made against it.
package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/salonbook/mapsync/internal/geo"
	"github.com/salonbook/mapsync/internal/surface"
	"github.com/salonbook/mapsync/pkg/core"
)

// OpKind names a surface call.
type OpKind string

const (
	OpCreate  OpKind = "create"
	OpRemove  OpKind = "remove"
	OpAnimate OpKind = "animate"
	OpToggle  OpKind = "toggle"
	OpDispose OpKind = "dispose"
)

// Op is one recorded surface call.
type Op struct {
	Kind     OpKind        `json:"kind"`
	HandleID string        `json:"handleId,omitempty"`
	Position core.Position `json:"position"`
	Text     string        `json:"text,omitempty"`
	Zoom     float64       `json:"zoom,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Marker is an on-screen marker.
type Marker struct {
	HandleID  string        `json:"handleId"`
	Position  core.Position `json:"position"`
	PopupText string        `json:"popupText"`
	PopupOpen bool          `json:"popupOpen"`
	WKT       string        `json:"wkt"`
}

// Viewport is the current camera.
type Viewport struct {
	Center core.Position `json:"center"`
	Zoom   float64       `json:"zoom"`
}

// Scene is a snapshot of everything on screen.
type Scene struct {
	Viewport Viewport `json:"viewport"`
	Markers  []Marker `json:"markers"`
	Disposed bool     `json:"disposed"`
}

// Surface stores the rendered scene in memory.
type Surface struct {
	mu       sync.Mutex
	opts     core.ViewOptions
	markers  map[string]*Marker
	viewport Viewport
	ops      []Op
	disposed bool

	idCounter uint
}

// New creates a memory surface centered on opts.Center.
func New(opts core.ViewOptions) *Surface {
	return &Surface{
		opts:     opts,
		markers:  make(map[string]*Marker),
		viewport: Viewport{Center: opts.Center, Zoom: opts.Zoom},
	}
}

// Factory adapts New to surface.Factory.
func Factory(opts core.ViewOptions) (surface.Surface, error) {
	return New(opts), nil
}

// CreateMarker puts a marker on screen with a closed popup.
func (s *Surface) CreateMarker(pos core.Position, popupText string) surface.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idCounter++
	id := fmt.Sprintf("m%d", s.idCounter)
	if s.disposed {
		return surface.ID(id)
	}

	s.ops = append(s.ops, Op{Kind: OpCreate, HandleID: id, Position: pos, Text: popupText})
	m := &Marker{
		HandleID:  id,
		Position:  pos,
		PopupText: popupText,
	}
	if pt, err := geo.Point(pos); err == nil {
		m.WKT = pt.AsText()
	}
	s.markers[id] = m
	return surface.ID(id)
}

// RemoveMarker takes the marker off screen. Unknown handles are ignored.
func (s *Surface) RemoveMarker(h surface.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || h == nil {
		return
	}
	s.ops = append(s.ops, Op{Kind: OpRemove, HandleID: h.HandleID()})
	delete(s.markers, h.HandleID())
}

// AnimateCenter jumps the viewport to the target; the duration is only recorded.
func (s *Surface) AnimateCenter(pos core.Position, zoom float64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.ops = append(s.ops, Op{Kind: OpAnimate, Position: pos, Zoom: zoom, Duration: duration})
	s.viewport = Viewport{Center: pos, Zoom: zoom}
}

// TogglePopup flips the popup state of the marker.
func (s *Surface) TogglePopup(h surface.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || h == nil {
		return
	}
	s.ops = append(s.ops, Op{Kind: OpToggle, HandleID: h.HandleID()})
	if m, ok := s.markers[h.HandleID()]; ok {
		m.PopupOpen = !m.PopupOpen
	}
}

// Dispose clears the scene. Later calls are ignored.
func (s *Surface) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.ops = append(s.ops, Op{Kind: OpDispose})
	s.markers = make(map[string]*Marker)
	s.disposed = true
}

// Ops returns a copy of the call log.
func (s *Surface) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Op, len(s.ops))
	copy(out, s.ops)
	return out
}

// Count returns how many calls of kind were recorded.
func (s *Surface) Count(kind OpKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, op := range s.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// ResetOps clears the call log but keeps the scene.
func (s *Surface) ResetOps() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
}

// Marker returns the on-screen marker for a handle.
func (s *Surface) Marker(h surface.Handle) (Marker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil {
		return Marker{}, false
	}
	m, ok := s.markers[h.HandleID()]
	if !ok {
		return Marker{}, false
	}
	return *m, true
}

// Options returns the options the surface was constructed with.
func (s *Surface) Options() core.ViewOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Disposed reports whether Dispose was called.
func (s *Surface) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Scene returns a snapshot of the viewport and markers, ordered by popup text then handle id.
func (s *Surface) Scene() Scene {
	s.mu.Lock()
	defer s.mu.Unlock()

	markers := make([]Marker, 0, len(s.markers))
	for _, m := range s.markers {
		markers = append(markers, *m)
	}
	sort.Slice(markers, func(i, j int) bool {
		if markers[i].PopupText != markers[j].PopupText {
			return markers[i].PopupText < markers[j].PopupText
		}
		return markers[i].HandleID < markers[j].HandleID
	})

	return Scene{
		Viewport: s.viewport,
		Markers:  markers,
		Disposed: s.disposed,
	}
}

// WriteJSON writes the current scene as indented JSON.
func (s *Surface) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Scene()); err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	return nil
}

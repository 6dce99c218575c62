// Package websocket implements a rendering surface that streams every surface
// call to a browser map client as a JSON envelope over a WebSocket.
//
// Clients must treat create_marker for a handle they already know as a no-op:
// after a reconnect the full scene is replayed.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/salonbook/mapsync/internal/geo"
	"github.com/salonbook/mapsync/internal/surface"
	"github.com/salonbook/mapsync/pkg/core"
	"github.com/salonbook/mapsync/pkg/streaming"
)

// Config holds WebSocket surface configuration.
type Config struct {
	URL string
}

type handle string

func (h handle) HandleID() string { return string(h) }

type liveMarker struct {
	create    streaming.CreateMarkerPayload
	popupOpen bool
}

// Surface streams surface operations to a connected map client.
type Surface struct {
	conn   *connection
	cfg    Config
	opts   core.ViewOptions
	logger *slog.Logger

	seq atomic.Uint64

	mu       sync.Mutex
	markers  map[string]*liveMarker
	disposed bool
}

// New creates a WebSocket surface. Call Open before use.
func New(cfg Config, opts core.ViewOptions, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Surface{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		markers: make(map[string]*liveMarker),
	}
	s.conn = newConnection(logger, s.snapshot)
	return s
}

// Factory returns a surface.Factory that dials cfg.URL for every mounted view.
func Factory(cfg Config, logger *slog.Logger) surface.Factory {
	return func(opts core.ViewOptions) (surface.Surface, error) {
		s := New(cfg, opts, logger)
		if err := s.Open(); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Open connects with the access token and waits for the client to
// acknowledge the initial view.
func (s *Surface) Open() error {
	if err := s.conn.dial(s.cfg.URL, s.opts.AccessToken); err != nil {
		return err
	}
	data, err := s.envelope(streaming.TypeInit, s.initPayload())
	if err != nil {
		_ = s.conn.close(nil)
		return err
	}
	if err := s.conn.sendAndWait(data, streaming.TypeInit, ackTimeout); err != nil {
		_ = s.conn.close(nil)
		return fmt.Errorf("websocket surface init: %w", err)
	}
	return nil
}

func (s *Surface) initPayload() streaming.InitPayload {
	return streaming.InitPayload{
		StyleURL: s.opts.StyleURL,
		Center:   s.opts.Center,
		Mercator: mercator(s.opts.Center),
		Zoom:     s.opts.Zoom,
	}
}

func mercator(pos core.Position) streaming.Mercator {
	x, y := geo.ToWebMercator(pos)
	return streaming.Mercator{X: x, Y: y}
}

// envelope builds a JSON-encoded Envelope from a message type and payload.
func (s *Surface) envelope(msgType string, payload any) ([]byte, error) {
	env := streaming.Envelope{Type: msgType, Seq: s.seq.Add(1)}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and pushes it to the write loop (fire-and-forget).
func (s *Surface) sendEnvelope(msgType string, payload any) {
	data, err := s.envelope(msgType, payload)
	if err != nil {
		s.logger.Error("Dropping surface message", "type", msgType, "error", err)
		return
	}
	s.conn.send(data)
}

// CreateMarker assigns a fresh handle and streams the marker.
func (s *Surface) CreateMarker(pos core.Position, popupText string) surface.Handle {
	h := handle(uuid.NewString())
	p := streaming.CreateMarkerPayload{
		Handle:    string(h),
		Position:  pos,
		Mercator:  mercator(pos),
		PopupText: popupText,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return h
	}
	s.markers[string(h)] = &liveMarker{create: p}
	s.sendEnvelope(streaming.TypeCreateMarker, p)
	return h
}

// RemoveMarker streams a removal for a live handle.
func (s *Surface) RemoveMarker(h surface.Handle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if _, ok := s.markers[h.HandleID()]; !ok {
		s.logger.Debug("Remove for unknown handle", "handle", h.HandleID())
		return
	}
	delete(s.markers, h.HandleID())
	s.sendEnvelope(streaming.TypeRemoveMarker, streaming.HandlePayload{Handle: h.HandleID()})
}

// AnimateCenter streams a fly-to request.
func (s *Surface) AnimateCenter(pos core.Position, zoom float64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.sendEnvelope(streaming.TypeAnimateCenter, streaming.AnimateCenterPayload{
		Position:   pos,
		Mercator:   mercator(pos),
		Zoom:       zoom,
		DurationMs: duration.Milliseconds(),
	})
}

// TogglePopup streams a popup toggle for a live handle.
func (s *Surface) TogglePopup(h surface.Handle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	m, ok := s.markers[h.HandleID()]
	if !ok {
		return
	}
	m.popupOpen = !m.popupOpen
	s.sendEnvelope(streaming.TypeTogglePopup, streaming.HandlePayload{Handle: h.HandleID()})
}

// Dispose tells the client to tear down the map and closes the connection.
func (s *Surface) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.markers = make(map[string]*liveMarker)
	s.mu.Unlock()

	final, err := s.envelope(streaming.TypeDispose, nil)
	if err != nil {
		s.logger.Error("Encoding dispose message", "error", err)
	}
	if err := s.conn.close(final); err != nil {
		s.logger.Warn("Closing websocket surface", "error", err)
	}
}

// snapshot encodes init plus every live marker, and a toggle for each open popup.
func (s *Surface) snapshot() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.markers))
	for id := range s.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([][]byte, 0, len(ids)+1)
	if data, err := s.envelope(streaming.TypeInit, s.initPayload()); err == nil {
		out = append(out, data)
	}
	for _, id := range ids {
		m := s.markers[id]
		if data, err := s.envelope(streaming.TypeCreateMarker, m.create); err == nil {
			out = append(out, data)
		}
		if m.popupOpen {
			if data, err := s.envelope(streaming.TypeTogglePopup, streaming.HandlePayload{Handle: id}); err == nil {
				out = append(out, data)
			}
		}
	}
	return out
}

// Live returns the number of markers the client should currently show.
func (s *Surface) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

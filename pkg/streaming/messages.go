// Package streaming defines the JSON messages exchanged between the websocket
// rendering surface and a browser map client.
package streaming

import (
	"encoding/json"

	"github.com/salonbook/mapsync/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeInit          = "init"
	TypeCreateMarker  = "create_marker"
	TypeRemoveMarker  = "remove_marker"
	TypeAnimateCenter = "animate_center"
	TypeTogglePopup   = "toggle_popup"
	TypeDispose       = "dispose"
	TypeAck           = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the client's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// Mercator is an EPSG:3857 coordinate in meters.
type Mercator struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InitPayload carries the initial view. The access token travels in the
// connection URL, never in a payload.
type InitPayload struct {
	StyleURL string        `json:"styleUrl,omitempty"`
	Center   core.Position `json:"center"`
	Mercator Mercator      `json:"mercator"`
	Zoom     float64       `json:"zoom"`
}

// CreateMarkerPayload puts a marker with a closed popup on screen.
type CreateMarkerPayload struct {
	Handle    string        `json:"handle"`
	Position  core.Position `json:"position"`
	Mercator  Mercator      `json:"mercator"`
	PopupText string        `json:"popupText"`
}

// HandlePayload addresses an existing marker.
type HandlePayload struct {
	Handle string `json:"handle"`
}

// AnimateCenterPayload asks the client to fly the viewport.
type AnimateCenterPayload struct {
	Position   core.Position `json:"position"`
	Mercator   Mercator      `json:"mercator"`
	Zoom       float64       `json:"zoom"`
	DurationMs int64         `json:"durationMs"`
}

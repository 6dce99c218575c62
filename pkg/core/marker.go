// pkg/core/marker.go
package core

import "time"

// Position is a WGS84 coordinate pair.
type Position struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// MarkerDescriptor is the declarative description of one marker that should
// be on screen. ID is the reconciliation key.
type MarkerDescriptor struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Position    Position `json:"position"`
}

// ViewOptions are the parameters a rendering surface is constructed with.
type ViewOptions struct {
	AccessToken string
	StyleURL    string
	Center      Position
	Zoom        float64
}

// FocusOptions control the fly-to animation issued when a marker is focused.
type FocusOptions struct {
	Zoom     float64
	Duration time.Duration
}

// Default focus animation parameters.
const (
	DefaultFocusZoom     = 15.0
	DefaultFocusDuration = 1000 * time.Millisecond
)

// DefaultFocusOptions returns the fixed zoom and duration used by focus.
func DefaultFocusOptions() FocusOptions {
	return FocusOptions{
		Zoom:     DefaultFocusZoom,
		Duration: DefaultFocusDuration,
	}
}

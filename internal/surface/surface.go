// Package surface defines the imperative rendering surface the marker engine
// drives. Every call is fire-and-forget: effects such as animations run
// asynchronously on the surface and nothing is reported back to the caller.
package surface

import (
	"time"

	"github.com/salonbook/mapsync/pkg/core"
)

// Handle identifies one on-screen marker created by a Surface.
// Handles are only meaningful to the surface that issued them.
type Handle interface {
	HandleID() string
}

// Surface is the contract consumed from a map SDK.
type Surface interface {
	// CreateMarker puts a marker on screen and attaches a detail popup.
	CreateMarker(pos core.Position, popupText string) Handle
	// RemoveMarker takes a marker off screen. The handle is dead afterwards.
	RemoveMarker(h Handle)
	// AnimateCenter flies the viewport to pos at the given zoom.
	AnimateCenter(pos core.Position, zoom float64, duration time.Duration)
	// TogglePopup opens a closed popup or closes an open one.
	TogglePopup(h Handle)
	// Dispose releases the surface itself.
	Dispose()
}

// Factory constructs a Surface for a mounted view. The access token is
// passed explicitly in opts.
type Factory func(opts core.ViewOptions) (Surface, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ID is a plain string Handle.
type ID string

// HandleID implements Handle.
func (id ID) HandleID() string { return string(id) }

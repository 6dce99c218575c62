// Package markersync keeps the markers rendered on a map surface in step with
// a declarative list of marker descriptors.
//
// Each marker id moves absent -> rendered -> absent. A marker enters the
// rendered state only through Reconcile and leaves it through Reconcile or
// Dispose. A descriptor whose name or position changes while its id stays the
// same is not re-rendered.
package markersync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/salonbook/mapsync/internal/cache"
	"github.com/salonbook/mapsync/internal/geo"
	"github.com/salonbook/mapsync/internal/surface"
	"github.com/salonbook/mapsync/pkg/core"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFocusOptions overrides the fly-to zoom and duration used by Focus.
func WithFocusOptions(f core.FocusOptions) Option {
	return func(e *Engine) {
		e.focus = f
	}
}

// Result summarizes one reconciliation pass.
type Result struct {
	Added   int
	Removed int
	Kept    int
	Skipped int // descriptors dropped for invalid positions
}

// Engine reconciles marker descriptors against one rendering surface.
// All methods are safe for concurrent use; overlapping calls are serialized.
type Engine struct {
	mu       sync.Mutex
	surface  surface.Surface
	rendered *cache.MarkerRegistry
	focused  string
	hasFocus bool
	disposed bool

	// set by Dispose before it waits for mu, so an in-flight pass stops early
	disposing atomic.Bool

	focus  core.FocusOptions
	logger Logger

	// OTEL metrics
	created      metric.Int64Counter
	removed      metric.Int64Counter
	focusCount   metric.Int64Counter
	renderedSize metric.Int64ObservableGauge
	registration metric.Registration
}

// New creates an Engine bound to s. s may be nil when the surface is not
// constructed yet; the engine is inert until Attach supplies one.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(s surface.Surface, opts ...Option) (*Engine, error) {
	e := &Engine{
		surface:  s,
		rendered: cache.NewMarkerRegistry(),
		focus:    core.DefaultFocusOptions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	m := meter()

	var err error

	e.created, err = m.Int64Counter(
		"markersync.markers.created",
		metric.WithDescription("Markers created on the rendering surface"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating created counter: %w", err)
	}

	e.removed, err = m.Int64Counter(
		"markersync.markers.removed",
		metric.WithDescription("Markers removed from the rendering surface"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating removed counter: %w", err)
	}

	e.focusCount, err = m.Int64Counter(
		"markersync.focus.requests",
		metric.WithDescription("Focus requests, by whether the id was rendered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating focus counter: %w", err)
	}

	e.renderedSize, err = m.Int64ObservableGauge(
		"markersync.markers.rendered",
		metric.WithDescription("Markers currently rendered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rendered gauge: %w", err)
	}

	if s != nil {
		if err := e.observe(); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// observe registers the rendered gauge callback. Called once a surface is bound.
func (e *Engine) observe() error {
	reg, err := meter().RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(e.renderedSize, int64(e.rendered.Len()))
			return nil
		},
		e.renderedSize,
	)
	if err != nil {
		return fmt.Errorf("registering rendered callback: %w", err)
	}
	e.registration = reg
	return nil
}

// Attach binds a surface to an engine created without one. It reports false
// if the engine already has a surface or has been disposed.
func (e *Engine) Attach(s surface.Surface) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || e.surface != nil || s == nil {
		return false
	}
	e.surface = s
	if err := e.observe(); err != nil {
		e.logger.Warn("rendered gauge unavailable", "error", err)
	}
	return true
}

// Reconcile makes the rendered markers match desired. Ids already rendered
// are left untouched, stale ids are removed first, then new ids are created
// in the order they first appear in desired. When an id occurs more than
// once the last descriptor wins. Without a surface this is a no-op.
func (e *Engine) Reconcile(desired []core.MarkerDescriptor) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res Result
	if e.surface == nil || e.disposed || e.disposing.Load() {
		e.logger.Debug("reconcile skipped, surface not available")
		return res
	}

	wanted, order := dedupe(desired)
	for _, id := range order {
		d := wanted[id]
		if err := geo.Validate(d.Position); err != nil {
			e.logger.Warn("skipping marker with invalid position", "id", id, "position", d.Position)
			delete(wanted, id)
			res.Skipped++
		}
	}

	ctx := context.Background()

	for _, id := range e.rendered.IDs() {
		if _, ok := wanted[id]; ok {
			res.Kept++
			continue
		}
		if e.disposing.Load() {
			return res
		}
		entry, _ := e.rendered.Delete(id)
		e.surface.RemoveMarker(entry.Handle)
		e.removed.Add(ctx, 1)
		res.Removed++
		if e.hasFocus && e.focused == id {
			e.focused, e.hasFocus = "", false
		}
	}

	for _, id := range order {
		d, ok := wanted[id]
		if !ok || e.rendered.Has(id) {
			continue
		}
		if e.disposing.Load() {
			return res
		}
		h := e.surface.CreateMarker(d.Position, d.DisplayName)
		e.rendered.Set(id, cache.MarkerEntry{Handle: h, Descriptor: d})
		e.created.Add(ctx, 1)
		res.Added++
	}

	if res.Added > 0 || res.Removed > 0 {
		e.logger.Debug("markers reconciled",
			"added", res.Added, "removed", res.Removed, "kept", res.Kept, "skipped", res.Skipped)
	}
	return res
}

// dedupe keeps the last descriptor per id and the order of first appearance.
func dedupe(desired []core.MarkerDescriptor) (map[string]core.MarkerDescriptor, []string) {
	wanted := make(map[string]core.MarkerDescriptor, len(desired))
	order := make([]string, 0, len(desired))
	for _, d := range desired {
		if _, seen := wanted[d.ID]; !seen {
			order = append(order, d.ID)
		}
		wanted[d.ID] = d
	}
	return wanted, order
}

// Focus flies the viewport to a rendered marker and toggles its popup.
// Calling it twice on the same id opens then closes the popup. Unknown ids
// are ignored.
func (e *Engine) Focus(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.surface == nil || e.disposed {
		return
	}

	entry, ok := e.rendered.Get(id)
	e.focusCount.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("found", ok)))
	if !ok {
		e.logger.Debug("focus ignored, marker not rendered", "id", id)
		return
	}

	e.surface.AnimateCenter(entry.Descriptor.Position, e.focus.Zoom, e.focus.Duration)
	e.surface.TogglePopup(entry.Handle)
	e.focused, e.hasFocus = id, true
}

// Dispose removes every marker and releases the surface. It interrupts a
// Reconcile that is in flight. Safe to call more than once. On an engine with
// no surface it does nothing, and Attach still works afterwards.
func (e *Engine) Dispose() {
	e.disposing.Store(true)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return
	}
	if e.surface == nil {
		// nothing bound yet; the engine stays attachable
		e.disposing.Store(false)
		return
	}
	e.disposed = true

	entries := e.rendered.Drain()
	e.focused, e.hasFocus = "", false

	if e.registration != nil {
		if err := e.registration.Unregister(); err != nil {
			e.logger.Warn("unregistering metrics callback", "error", err)
		}
	}

	for _, entry := range entries {
		e.surface.RemoveMarker(entry.Handle)
	}
	if len(entries) > 0 {
		e.removed.Add(context.Background(), int64(len(entries)))
	}
	e.surface.Dispose()
	e.surface = nil

	e.logger.Info("marker engine disposed", "released", len(entries))
}

// IDs returns the rendered marker ids in ascending order.
func (e *Engine) IDs() []string {
	return e.rendered.IDs()
}

// Len returns the number of rendered markers.
func (e *Engine) Len() int {
	return e.rendered.Len()
}

// Rendered returns the descriptor the marker for id was created from.
func (e *Engine) Rendered(id string) (core.MarkerDescriptor, bool) {
	entry, ok := e.rendered.Get(id)
	return entry.Descriptor, ok
}

// FocusedID returns the id of the last focused marker, if it is still rendered.
func (e *Engine) FocusedID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focused, e.hasFocus
}

// Mounted reports whether the engine has a live surface.
func (e *Engine) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.surface != nil && !e.disposed
}

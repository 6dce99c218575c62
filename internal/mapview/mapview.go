// Package mapview ties the marker engine to a rendering surface for the
// lifetime of one mounted map view.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/salonbook/mapsync/internal/dispatcher"
	"github.com/salonbook/mapsync/internal/markersync"
	"github.com/salonbook/mapsync/internal/surface"
	"github.com/salonbook/mapsync/pkg/core"
)

var (
	ErrMissingAccessToken = errors.New("map access token is not configured")
	ErrAlreadyMounted     = errors.New("view already mounted")
	ErrUnmounted          = errors.New("view has been unmounted")
)

const (
	cmdView = "view"

	defaultQueueSize = 64
)

// Config describes a map view.
type Config struct {
	View      core.ViewOptions
	Focus     core.FocusOptions
	QueueSize int
	Logger    *slog.Logger
}

// View owns one engine and the surface it renders to. Update and Focus share
// one queue and are applied one at a time in arrival order.
type View struct {
	cfg     Config
	factory surface.Factory
	logger  *slog.Logger

	mu        sync.Mutex
	engine    *markersync.Engine
	events    *dispatcher.Dispatcher
	unmounted bool
}

// New creates an unmounted view. Update and Focus are no-ops until Mount.
func New(cfg Config, factory surface.Factory) *View {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Focus.Zoom == 0 && cfg.Focus.Duration == 0 {
		cfg.Focus = core.DefaultFocusOptions()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &View{cfg: cfg, factory: factory, logger: logger}
}

// Mount constructs the rendering surface with the configured credential and
// starts the event worker.
func (v *View) Mount(ctx context.Context) error {
	if v.cfg.View.AccessToken == "" {
		return ErrMissingAccessToken
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.mount(); err != nil {
		return err
	}
	v.logger.Info("map view mounted", "style", v.cfg.View.StyleURL)
	return nil
}

func (v *View) mount() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.unmounted {
		return ErrUnmounted
	}
	if v.engine != nil {
		return ErrAlreadyMounted
	}

	// the engine exists before its surface; it stays inert until Attach
	engine, err := markersync.New(nil,
		markersync.WithLogger(v.logger),
		markersync.WithFocusOptions(v.cfg.Focus),
	)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	s, err := v.factory(v.cfg.View)
	if err != nil {
		return fmt.Errorf("creating surface: %w", err)
	}
	if !engine.Attach(s) {
		s.Dispose()
		return errors.New("attaching surface: engine refused it")
	}

	events, err := dispatcher.New(v.logger)
	if err != nil {
		engine.Dispose()
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	events.Register(cmdView, func(e dispatcher.Event) (any, error) {
		switch cmd := e.Payload.(type) {
		case updateCmd:
			res := engine.Reconcile(cmd.desired)
			v.logger.Debug("view updated",
				"added", res.Added, "removed", res.Removed, "kept", res.Kept, "skipped", res.Skipped)
			return res, nil
		case focusCmd:
			engine.Focus(cmd.id)
			return nil, nil
		case barrier:
			close(cmd)
			return nil, nil
		default:
			return nil, fmt.Errorf("unexpected view command %T", e.Payload)
		}
	}, dispatcher.Buffered(v.cfg.QueueSize), dispatcher.Blocking(), dispatcher.Logged())

	v.engine = engine
	v.events = events
	return nil
}

// Update queues a reconcile against desired. It is a no-op when the view is
// not mounted.
func (v *View) Update(desired []core.MarkerDescriptor) error {
	events := v.dispatcher()
	if events == nil {
		return nil
	}
	// copy so later caller mutations do not race with the worker
	list := append([]core.MarkerDescriptor(nil), desired...)
	return ignoreClosed(events.Dispatch(dispatcher.Event{Command: cmdView, Payload: updateCmd{desired: list}}))
}

// Focus queues a fly-to and popup toggle for id.
func (v *View) Focus(id string) error {
	events := v.dispatcher()
	if events == nil {
		return nil
	}
	return ignoreClosed(events.Dispatch(dispatcher.Event{Command: cmdView, Payload: focusCmd{id: id}}))
}

// Settle blocks until every update and focus queued before the call has been
// applied, or ctx is done.
func (v *View) Settle(ctx context.Context) error {
	events := v.dispatcher()
	if events == nil {
		return nil
	}

	done := make(barrier)
	_, err := events.Dispatch(dispatcher.Event{Command: cmdView, Payload: done})
	if errors.Is(err, dispatcher.ErrClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unmount disposes the engine and its surface, even while an update is being
// applied, then stops the worker. Safe to call more than once.
func (v *View) Unmount() {
	v.mu.Lock()
	engine, events := v.engine, v.events
	v.engine, v.events = nil, nil
	already := v.unmounted
	v.unmounted = true
	v.mu.Unlock()

	if engine != nil {
		engine.Dispose()
	}
	if events != nil {
		events.Close()
	}
	if !already && engine != nil {
		v.logger.Info("map view unmounted")
	}
}

// Len returns the number of markers currently rendered.
func (v *View) Len() int {
	if e := v.current(); e != nil {
		return e.Len()
	}
	return 0
}

// IDs returns the rendered marker ids, sorted.
func (v *View) IDs() []string {
	if e := v.current(); e != nil {
		return e.IDs()
	}
	return nil
}

// FocusedID returns the id of the last focused marker, if still rendered.
func (v *View) FocusedID() (string, bool) {
	if e := v.current(); e != nil {
		return e.FocusedID()
	}
	return "", false
}

// Mounted reports whether the view currently holds a live engine.
func (v *View) Mounted() bool {
	return v.current() != nil
}

func (v *View) current() *markersync.Engine {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine
}

func (v *View) dispatcher() *dispatcher.Dispatcher {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.events
}

type (
	updateCmd struct{ desired []core.MarkerDescriptor }
	focusCmd  struct{ id string }
	barrier   chan struct{}
)

func ignoreClosed(_ any, err error) error {
	if errors.Is(err, dispatcher.ErrClosed) {
		return nil
	}
	return err
}

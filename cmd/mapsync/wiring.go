package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/salonbook/mapsync/internal/config"
	"github.com/salonbook/mapsync/internal/geo"
	"github.com/salonbook/mapsync/internal/mapview"
	"github.com/salonbook/mapsync/internal/source"
	"github.com/salonbook/mapsync/internal/source/rest"
	"github.com/salonbook/mapsync/internal/source/store"
	"github.com/salonbook/mapsync/internal/surface"
	"github.com/salonbook/mapsync/internal/surface/memory"
	wssurface "github.com/salonbook/mapsync/internal/surface/websocket"
	"github.com/salonbook/mapsync/pkg/core"
)

func createSurfaceFactory(cfg config.SurfaceConfig, logger *slog.Logger) (surface.Factory, error) {
	switch cfg.Type {
	case "memory":
		logger.Info("Memory surface selected")
		return memory.Factory, nil
	case "websocket":
		logger.Info("WebSocket surface selected", "url", cfg.WebsocketURL)
		return wssurface.Factory(wssurface.Config{URL: cfg.WebsocketURL}, logger), nil
	default:
		return nil, fmt.Errorf("unknown surface type: %q", cfg.Type)
	}
}

func openStore(cfg config.SourceConfig, logger *slog.Logger) (*store.Store, error) {
	switch cfg.Type {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("source type %q has no local store", cfg.Type)
	}
	return store.Open(store.Config{
		Driver: cfg.Type,
		Path:   cfg.SQLitePath,
		DSN:    cfg.DB.DSN(),
	}, logger)
}

// openSource returns the configured source and a func releasing it.
func openSource(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (source.Source, func(), error) {
	switch cfg.Type {
	case "sqlite", "postgres":
		st, err := openStore(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case "rest":
		c := rest.New(cfg.Rest.BaseURL, cfg.Rest.APIKey, cfg.Rest.Table)
		if err := c.Healthcheck(ctx); err != nil {
			logger.Warn("REST backend healthcheck failed", "error", err, "url", cfg.Rest.BaseURL)
		}
		return c, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source type: %q", cfg.Type)
	}
}

// viewConfig builds the view settings, optionally centering on the markers.
func viewConfig(mapCfg config.MapConfig, desired []core.MarkerDescriptor, fit bool, logger *slog.Logger) mapview.Config {
	opts := mapCfg.ViewOptions()
	if token != "" {
		opts.AccessToken = token
	}
	if fit {
		if b, ok := geo.BoundsOf(desired); ok {
			opts.Center = b.Center()
			if pt, err := geo.Point(opts.Center); err == nil {
				logger.Debug("Centered view on markers", "center", pt.AsText())
			}
		}
	}
	return mapview.Config{
		View:   opts,
		Focus:  mapCfg.Focus,
		Logger: logger,
	}
}

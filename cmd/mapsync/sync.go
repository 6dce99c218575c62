package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salonbook/mapsync/internal/config"
	"github.com/salonbook/mapsync/internal/mapview"
	"github.com/salonbook/mapsync/internal/source"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var syncFit bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mount the configured surface and keep it in sync until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSync(ctx, a.logger)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFit, "fit", false, "center the initial view on the markers")
}

func runSync(ctx context.Context, logger *slog.Logger) error {
	src, release, err := openSource(ctx, config.GetSourceConfig(), logger)
	if err != nil {
		return err
	}
	defer release()

	factory, err := createSurfaceFactory(config.GetSurfaceConfig(), logger)
	if err != nil {
		return err
	}

	initial, err := src.Descriptors(ctx)
	if err != nil {
		return err
	}

	view := mapview.New(viewConfig(config.GetMapConfig(), initial, syncFit, logger), factory)
	if err := view.Mount(ctx); err != nil {
		return err
	}
	a.view.Store(view)
	defer a.view.Store(nil)
	defer view.Unmount()

	if err := view.Update(initial); err != nil {
		return err
	}

	interval := config.GetSyncConfig().Interval
	logger.Info("Sync started", "interval", interval, "markers", len(initial))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poll(gctx, src, view, interval, logger)
	})
	g.Go(func() error {
		// tear down as soon as we are told to stop, even mid-update
		<-gctx.Done()
		view.Unmount()
		return nil
	})

	err = g.Wait()
	logger.Info("Sync stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// poll refreshes the view every interval. A failed fetch keeps the current
// markers instead of clearing the map.
func poll(ctx context.Context, src source.Source, view *mapview.View, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		desired, err := src.Descriptors(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Failed to fetch shops", "error", err)
			continue
		}
		if err := view.Update(desired); err != nil {
			return err
		}
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/salonbook/mapsync/internal/config"
	"github.com/salonbook/mapsync/internal/mapview"
	"github.com/salonbook/mapsync/internal/surface"
	"github.com/salonbook/mapsync/internal/surface/memory"
	"github.com/salonbook/mapsync/pkg/core"
	"github.com/spf13/cobra"
)

var (
	planFocus string
	planFit   bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Render the current shops on an in-memory surface and print the scene as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, release, err := openSource(cmd.Context(), config.GetSourceConfig(), a.logger)
		if err != nil {
			return err
		}
		defer release()

		desired, err := src.Descriptors(cmd.Context())
		if err != nil {
			return err
		}
		return runPlan(cmd.Context(), cmd.OutOrStdout(), config.GetMapConfig(), desired, a.logger)
	},
}

func init() {
	planCmd.Flags().StringVar(&planFocus, "focus", "", "focus the marker with this id before printing")
	planCmd.Flags().BoolVar(&planFit, "fit", false, "center the view on the markers")
}

func runPlan(ctx context.Context, w io.Writer, mapCfg config.MapConfig, desired []core.MarkerDescriptor, logger *slog.Logger) error {
	var mem *memory.Surface
	factory := func(opts core.ViewOptions) (surface.Surface, error) {
		mem = memory.New(opts)
		return mem, nil
	}

	view := mapview.New(viewConfig(mapCfg, desired, planFit, logger), factory)
	if err := view.Mount(ctx); err != nil {
		return err
	}
	defer view.Unmount()

	if err := view.Update(desired); err != nil {
		return err
	}
	if planFocus != "" {
		if err := view.Focus(planFocus); err != nil {
			return err
		}
	}
	if err := view.Settle(ctx); err != nil {
		return err
	}

	if err := mem.WriteJSON(w); err != nil {
		return fmt.Errorf("writing scene: %w", err)
	}
	logger.Info("Plan written", "markers", view.Len())
	return nil
}

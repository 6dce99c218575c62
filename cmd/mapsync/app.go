package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/salonbook/mapsync/internal/config"
	"github.com/salonbook/mapsync/internal/logging"
	"github.com/salonbook/mapsync/internal/mapview"
	intOtel "github.com/salonbook/mapsync/internal/otel"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// app carries the process-wide logging and telemetry state.
type app struct {
	startTime time.Time
	logFile   *os.File
	slog      *logging.SlogManager
	logger    *slog.Logger
	otel      *intOtel.Provider

	// view being synced, read by the log context provider
	view atomic.Pointer[mapview.View]

	closed bool
}

func configFileName() string {
	return config.FileName
}

func newApp(configDir, levelOverride string) (*app, error) {
	a := &app{
		startTime: time.Now(),
		slog:      logging.NewSlogManager(AppName),
	}
	// stderr until the log file is known
	a.logger = a.slog.Logger()

	if err := config.Load(configDir); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		a.logger.Warn("Config file not found, using defaults", "dir", configDir)
	}

	level := config.GetString("logLevel")
	if levelOverride != "" {
		level = levelOverride
	}

	logsDir := config.GetString("logsDir")
	f, err := logging.OpenLogFile(logsDir, AppName, a.startTime)
	if err != nil {
		a.logger.Error("Failed to create/open log file!", "error", err, "dir", logsDir)
	} else {
		a.logFile = f
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		cfg := intOtel.Config{
			Enabled:      true,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		}
		if a.logFile != nil {
			cfg.Writer = a.logFile
		}
		a.otel, err = intOtel.New(cfg)
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
			a.otel = nil
		} else {
			a.logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if a.otel != nil {
		otelLogProvider = a.otel.LoggerProvider()
	}

	if a.logFile != nil {
		a.slog.Setup(a.logFile, level, otelLogProvider, a.logContext)
		a.logger = a.slog.Logger()
		a.logger.Info("Logging to file", "path", a.logFile.Name(), "version", Version)
	} else {
		a.slog.Setup(nil, level, otelLogProvider, a.logContext)
		a.logger = a.slog.Logger()
	}

	return a, nil
}

func (a *app) logContext() []slog.Attr {
	v := a.view.Load()
	if v == nil {
		return nil
	}
	return []slog.Attr{slog.Int("markers", v.Len())}
}

func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.slog.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flushing logs:", err)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "shutting down otel:", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

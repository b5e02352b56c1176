// Package app wires the application together: logger, configuration
// model, process registry, planner, and orchestrator. It owns the
// lifecycle from "config path" to "run result on disk".
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/ctxlog"
	"github.com/vk/shotmatrix/internal/procreg"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	model    *config.Model
	registry *procreg.Registry

	status *statusServer
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registry.
// A config that cannot be loaded is a fatal startup error and panics;
// the entrypoint recovers it into a clean exit.
func NewApp(outW io.Writer, appConfig *Config) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := config.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	if appConfig.LocalePath != "" {
		if err := config.ApplyLocaleOverrides(model, appConfig.LocalePath); err != nil {
			panic(fmt.Errorf("failed to apply locale overrides: %w", err))
		}
		logger.Debug("Locale overrides applied.", "path", appConfig.LocalePath)
	}
	logger.Debug("Configuration loaded and validated.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   appConfig,
		model:    model,
		registry: procreg.New(),
	}
}

// Registry exposes the process registry so the entrypoint can drain it
// at every exit point.
func (a *App) Registry() *procreg.Registry {
	return a.registry
}

// Model returns the loaded configuration model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// Drain releases everything still registered, with the app's logger
// attached so drain activity is visible at every exit point.
func (a *App) Drain(ctx context.Context) {
	a.registry.Drain(ctxlog.WithLogger(ctx, a.logger), procreg.DefaultDrainTimeout)
}

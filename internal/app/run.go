package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vk/shotmatrix/internal/automation"
	"github.com/vk/shotmatrix/internal/build"
	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/ctxlog"
	"github.com/vk/shotmatrix/internal/device"
	"github.com/vk/shotmatrix/internal/executor"
	"github.com/vk/shotmatrix/internal/imaging"
	"github.com/vk/shotmatrix/internal/orchestrator"
	"github.com/vk/shotmatrix/internal/plan"
	"github.com/vk/shotmatrix/internal/ports"
	"github.com/vk/shotmatrix/internal/report"
)

// ErrRunFailed marks a run that completed but had failing or cancelled
// jobs. The entrypoint maps it to a non-zero exit code; the manifest is
// still written so CI can see exactly which jobs failed.
var ErrRunFailed = errors.New("run finished with failed jobs")

// Run executes the main application logic: build the plan, then either
// print it as a CI matrix or execute it and report.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	p, err := a.buildPlan()
	if err != nil {
		return err
	}
	a.logger.Info("Run plan built.",
		"jobs", len(p.Jobs),
		"platforms", p.Totals.Platforms,
		"devices", p.Totals.Devices,
		"languages", p.Totals.Languages,
		"screenshots", p.Totals.Screenshots,
		"estimated", p.EstimatedDuration.String())

	if a.config.PrintMatrix != MatrixOff {
		return a.printMatrix(p)
	}

	exec := executor.New(a.model, executor.Deps{
		Drivers: map[config.Platform]device.Driver{
			config.PlatformIOS:     device.NewIOSDriver(),
			config.PlatformAndroid: device.NewAndroidDriver(),
		},
		Automation: automation.NewExecProvider(a.config.AutomationBinary),
		Inspector:  imaging.NewFileInspector(),
		Registry:   a.registry,
	})
	orch := orchestrator.New(exec, a.config.Workers)

	if a.config.StatusPort > 0 {
		a.startStatusServer(ctx, orch)
		defer a.stopStatusServer(ctx)
	}

	a.logger.Info("🚀 Starting run.", "output", a.config.OutputRoot)
	runResult := orch.Execute(ctx, p)

	manifestPath, err := report.WriteManifest(a.config.OutputRoot, runResult)
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	a.logger.Info("Manifest written.", "path", manifestPath)
	report.WriteSummary(a.outW, runResult)

	if !runResult.Success {
		return fmt.Errorf("%w: %d of %d", ErrRunFailed,
			runResult.Summary.Failed+runResult.Summary.Cancelled, runResult.Summary.Jobs)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// buildPlan resolves filters, ports, and artifacts into the run plan.
func (a *App) buildPlan() (*plan.Plan, error) {
	allocator, err := ports.New(a.model.Ports.Base, a.model.Ports.Offset)
	if err != nil {
		return nil, err
	}
	resolver := build.NewResolver(a.model.App.BuildDir)

	return plan.Build(a.model, a.config.OutputRoot,
		plan.Filters{
			Platforms:   a.config.Platforms,
			Devices:     a.config.Devices,
			Languages:   a.config.Languages,
			Screenshots: a.config.Screenshots,
		},
		plan.Overrides{
			IOSArtifact:     a.config.IOSArtifact,
			AndroidArtifact: a.config.AndroidArtifact,
		},
		allocator, resolver)
}

// printMatrix renders the plan's CI matrix projection as JSON and stops
// before any execution side effects.
func (a *App) printMatrix(p *plan.Plan) error {
	var payload any
	if a.config.PrintMatrix == MatrixFlat {
		payload = p.Matrix()
	} else {
		grouped, err := p.MatrixBy(plan.GroupKey(a.config.PrintMatrix))
		if err != nil {
			return err
		}
		payload = grouped
	}
	encoder := json.NewEncoder(a.outW)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

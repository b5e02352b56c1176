package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/shotmatrix/internal/automation"
	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/procreg"
	"github.com/vk/shotmatrix/internal/result"
)

// dismissorTimeout is how long a best-effort popup dismissor looks for
// its element. Finding nothing is the normal case and must stay cheap.
const dismissorTimeout = 2 * time.Second

// execute starts the automation stack and walks every screenshot plan in
// order. The first fatal error ends the job's remaining actions.
func (r *jobRun) execute(ctx context.Context) error {
	server, err := r.e.deps.Automation.StartServer(ctx, r.job.Ports.Automation)
	if err != nil {
		return &ProvisionError{Stage: "automation-server", Err: err}
	}
	r.server = server
	if err := r.e.deps.Registry.Register(r.job.ID()+"/server", procreg.KindServer, func(relCtx context.Context) error {
		return server.Stop(relCtx)
	}); err != nil {
		return &ProvisionError{Stage: "register", Err: err}
	}

	dev := r.job.Device()
	session, err := r.e.deps.Automation.CreateSession(ctx, r.job.Ports.Automation, automation.SessionRequest{
		Platform:     r.job.Platform,
		DeviceID:     r.deviceID,
		DeviceName:   dev.Name,
		OSVersion:    dev.OSVersion,
		AppID:        r.rt.appID,
		ArtifactPath: r.job.ArtifactPath,
		Capabilities: dev.Capabilities,
	})
	if err != nil {
		return &ProvisionError{Stage: "session", Err: err}
	}
	r.session = session

	for _, shot := range r.job.Screenshots {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.runPlan(ctx, shot); err != nil {
			return err
		}
	}
	return nil
}

// runPlan executes one screenshot plan: orientation, dismissors, the
// ordered actions, then the best-effort platform assertion.
func (r *jobRun) runPlan(ctx context.Context, shot config.ScreenshotPlan) error {
	logger := r.logger.With("screenshot", shot.Name)
	logger.Debug("Running screenshot plan.")

	if shot.Orientation != "" {
		if err := r.session.SetOrientation(ctx, shot.Orientation); err != nil {
			return &ActionError{Plan: shot.Name, Action: "orientation", Err: err}
		}
	}

	r.runDismissors(ctx, logger)

	for i, action := range shot.Actions {
		if err := r.runAction(ctx, shot, i, action); err != nil {
			return err
		}
	}

	if selector := r.rt.assert(shot); selector != "" {
		if err := r.session.WaitFor(ctx, selector, r.e.cfg.Timeouts.Action); err != nil {
			// Assertions are a non-fatal signal: the screenshot is already
			// captured, so we log and keep going.
			logger.Warn("Plan assertion failed, continuing.", "selector", selector, "error", err)
		}
	}
	return nil
}

// runDismissors fires every configured dismissor once. A dismissor that
// finds nothing is not an error.
func (r *jobRun) runDismissors(ctx context.Context, logger *slog.Logger) {
	for _, selector := range r.e.cfg.Dismissors {
		elementID, err := r.session.FindElement(ctx, selector, dismissorTimeout)
		if err != nil {
			continue
		}
		if err := r.session.Click(ctx, elementID); err != nil {
			logger.Debug("Dismissor click failed.", "selector", selector, "error", err)
			continue
		}
		logger.Debug("Dismissor dismissed a popup.", "selector", selector)
	}
}

func (r *jobRun) runAction(ctx context.Context, shot config.ScreenshotPlan, i int, action config.Action) error {
	name := fmt.Sprintf("%s[%d]", action.Type, i)

	switch action.Type {
	case config.ActionTap:
		elementID, err := r.session.FindElement(ctx, action.Selector, r.e.cfg.Timeouts.Action)
		if err != nil {
			return &ActionError{Plan: shot.Name, Action: name, Err: err}
		}
		if err := r.session.Click(ctx, elementID); err != nil {
			return &ActionError{Plan: shot.Name, Action: name, Err: err}
		}

	case config.ActionWait:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(action.Duration):
		}

	case config.ActionWaitFor:
		timeout := action.Timeout
		if timeout <= 0 {
			timeout = r.e.cfg.Timeouts.Action
		}
		if err := r.session.WaitFor(ctx, action.Selector, timeout); err != nil {
			return &ActionError{Plan: shot.Name, Action: name, Err: err}
		}

	case config.ActionCapture:
		if err := r.capture(ctx, shot); err != nil {
			return &ActionError{Plan: shot.Name, Action: name, Err: err}
		}

	default:
		return &ActionError{Plan: shot.Name, Action: name,
			Err: fmt.Errorf("unknown action type %q", action.Type)}
	}
	return nil
}

// capture takes the device-level screenshot and records it tagged with
// the job's language, so same-named screenshots across languages never
// collide even outside their per-language directories.
func (r *jobRun) capture(ctx context.Context, shot config.ScreenshotPlan) error {
	captured := result.ScreenshotResult{
		Name:       shot.Name,
		Language:   r.job.Language.Code,
		CapturedAt: time.Now(),
	}

	data, err := r.rt.driver.Screenshot(ctx, r.deviceID)
	if err != nil {
		captured.Error = err.Error()
		r.res.Screenshots = append(r.res.Screenshots, captured)
		return err
	}

	filename := fmt.Sprintf("%s_%s.png", shot.Name, r.job.Language.Code)
	path := filepath.Join(r.job.OutputDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		captured.Error = err.Error()
		r.res.Screenshots = append(r.res.Screenshots, captured)
		return err
	}

	captured.Path = path
	captured.SizeBytes = int64(len(data))
	captured.OK = true
	r.res.Screenshots = append(r.res.Screenshots, captured)
	r.logger.Info("📸 Captured screenshot", "name", shot.Name, "path", path)
	return nil
}

// Package executor runs one planned job to completion: device
// provisioning, screenshot-plan execution, dimension validation, failure
// diagnostics, and guaranteed teardown. Each job owns its device, its
// port triple, and its output directory exclusively, so executors never
// share mutable state.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vk/shotmatrix/internal/automation"
	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/ctxlog"
	"github.com/vk/shotmatrix/internal/device"
	"github.com/vk/shotmatrix/internal/imaging"
	"github.com/vk/shotmatrix/internal/plan"
	"github.com/vk/shotmatrix/internal/procreg"
	"github.com/vk/shotmatrix/internal/result"
)

// State is the fine-grained position of a job inside its lifecycle.
type State string

const (
	StatePending      State = "pending"
	StateProvisioning State = "provisioning"
	StateExecuting    State = "executing"
	StateValidating   State = "validating"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Deps are the collaborators a job needs. All of them are safe for use
// by many executors at once.
type Deps struct {
	Drivers    map[config.Platform]device.Driver
	Automation automation.Provider
	Inspector  imaging.Inspector
	Registry   *procreg.Registry
}

// Executor runs jobs. One instance serves the whole run; per-job state
// lives in a jobRun created inside Run.
type Executor struct {
	cfg  *config.Model
	deps Deps
}

// New creates a job executor for one run's configuration.
func New(cfg *config.Model, deps Deps) *Executor {
	return &Executor{cfg: cfg, deps: deps}
}

// jobRun is the mutable state of one in-flight job. The executor's
// worker goroutine is its only writer.
type jobRun struct {
	e      *Executor
	job    *plan.Job
	rt     *platformRuntime
	res    *result.JobResult
	logger *slog.Logger

	state         State
	deviceID      string
	server        automation.Server
	session       automation.Session
	artifactsDone bool
	tornDown      bool
}

// Run executes the job through the state machine and always returns a
// finalized JobResult; it never returns an error because a job failure
// IS a result. Teardown runs exactly once on every path.
func (e *Executor) Run(ctx context.Context, job *plan.Job) *result.JobResult {
	logger := ctxlog.FromContext(ctx).With("job", job.ID())
	r := &jobRun{
		e:      e,
		job:    job,
		logger: logger,
		state:  StatePending,
		res: &result.JobResult{
			JobIndex:  job.Index,
			Platform:  string(job.Platform),
			Device:    job.Device().Name,
			Language:  job.Language.Code,
			Status:    result.StatusRunning,
			StartedAt: time.Now(),
		},
	}
	defer r.teardown(ctx)

	if ctx.Err() != nil {
		return r.cancel()
	}

	rt, err := newPlatformRuntime(e.cfg, job, e.deps.Drivers)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.rt = rt

	logger.Info("▶️ Starting job", "device", job.Device().Name, "language", job.Language.Code)

	r.setState(StateProvisioning)
	if err := r.provision(ctx); err != nil {
		return r.fail(ctx, err)
	}

	r.setState(StateExecuting)
	if err := r.execute(ctx); err != nil {
		return r.fail(ctx, err)
	}

	r.setState(StateValidating)
	if err := r.validate(ctx); err != nil {
		return r.fail(ctx, err)
	}

	r.setState(StateSucceeded)
	r.res.Status = result.StatusSuccess
	logger.Info("✅ Job finished", "screenshots", r.res.CapturedCount())
	return r.res
}

func (r *jobRun) setState(s State) {
	r.logger.Debug("Job state changed.", "from", r.state, "to", s)
	r.state = s
}

// cancel finalizes a job that never got to run.
func (r *jobRun) cancel() *result.JobResult {
	r.setState(StateCancelled)
	r.res.Status = result.StatusCancelled
	r.res.Error = "run cancelled before job completed"
	return r.res
}

// fail finalizes the job after its first fatal error. Cancellation is
// not a failure: no artifacts are captured for it and the status says
// Cancelled, not Failed.
func (r *jobRun) fail(ctx context.Context, err error) *result.JobResult {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		r.logger.Warn("Job cancelled.", "state", r.state)
		return r.cancel()
	}
	r.logger.Error("Job failed.", "state", r.state, "error", err)
	r.captureArtifacts(ctx)
	r.setState(StateFailed)
	r.res.Status = result.StatusFailed
	r.res.Error = err.Error()
	return r.res
}

// provision boots the device, applies locale and cosmetics, and installs
// the artifact. Every spawned resource is registered before anything
// that can fail afterwards.
func (r *jobRun) provision(ctx context.Context) error {
	cfg := r.e.cfg

	bootCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.DeviceOp)
	defer cancel()
	deviceID, err := r.rt.driver.Boot(bootCtx, r.job.Device(), r.rt.auxPort)
	if err != nil {
		return &ProvisionError{Stage: "boot", Err: err}
	}
	r.deviceID = deviceID
	r.logger.Debug("Device booted.", "device_id", deviceID)

	if err := r.e.deps.Registry.Register(r.job.ID()+"/device", procreg.KindDevice, func(relCtx context.Context) error {
		return r.rt.driver.Shutdown(relCtx, deviceID)
	}); err != nil {
		return &ProvisionError{Stage: "register", Err: err}
	}

	if err := r.deviceOp(ctx, "locale", func(opCtx context.Context) error {
		return r.rt.driver.SetLocale(opCtx, deviceID, r.rt.locale)
	}); err != nil {
		return err
	}

	if err := r.deviceOp(ctx, "install", func(opCtx context.Context) error {
		return r.rt.driver.InstallApp(opCtx, deviceID, r.job.ArtifactPath)
	}); err != nil {
		return err
	}

	if r.job.Device().StatusBar {
		if err := r.deviceOp(ctx, "status-bar", func(opCtx context.Context) error {
			return r.rt.driver.SetStatusBar(opCtx, deviceID, device.DefaultStatusBar)
		}); err != nil {
			return err
		}
	}

	if err := r.applyResetPolicy(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(r.job.OutputDir, 0o755); err != nil {
		return &ProvisionError{Stage: "output-dir", Err: err}
	}
	return nil
}

// applyResetPolicy clears app state before the first action of this
// language group. Each job is one language, so on-language-change always
// resets here; the distinction from always-reinstall is whether the
// artifact is installed again afterwards. A driver whose reset removes
// the app (simctl's uninstall-based reset) forces the reinstall under
// every policy, or the session would launch against a missing app.
func (r *jobRun) applyResetPolicy(ctx context.Context) error {
	policy := r.e.cfg.App.ResetPolicy
	if policy == config.ResetNone {
		return nil
	}
	if r.rt.appID == "" {
		return &ProvisionError{Stage: "reset",
			Err: fmt.Errorf("reset_policy %q requires the %s app identifier in config", policy, r.job.Platform)}
	}
	if err := r.deviceOp(ctx, "reset", func(opCtx context.Context) error {
		return r.rt.driver.ResetAppData(opCtx, r.deviceID, r.rt.appID)
	}); err != nil {
		return err
	}
	if policy == config.ResetAlwaysReinstall || r.rt.driver.ResetRequiresReinstall() {
		return r.deviceOp(ctx, "reinstall", func(opCtx context.Context) error {
			return r.rt.driver.InstallApp(opCtx, r.deviceID, r.job.ArtifactPath)
		})
	}
	return nil
}

// deviceOp runs one driver call under the device-operation timeout.
func (r *jobRun) deviceOp(ctx context.Context, stage string, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, r.e.cfg.Timeouts.DeviceOp)
	defer cancel()
	if err := op(opCtx); err != nil {
		return &ProvisionError{Stage: stage, Err: err}
	}
	return nil
}

// teardown releases the job's resources in reverse acquisition order. It
// runs on every path, success or failure, and uses a context detached
// from cancellation: a cancelled run still shuts its devices down.
// Teardown errors are logged, never escalated; a job's outcome is
// decided before teardown starts.
func (r *jobRun) teardown(ctx context.Context) {
	if r.tornDown {
		return
	}
	r.tornDown = true

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.e.cfg.Timeouts.DeviceOp)
	defer cancel()

	if r.session != nil {
		if err := r.session.Close(tctx); err != nil {
			r.logger.Debug("Closing automation session failed.", "error", err)
		}
		r.session = nil
	}
	if r.server != nil {
		if err := r.server.Stop(tctx); err != nil {
			r.logger.Warn("Stopping automation server failed.", "error", err)
		}
		r.e.deps.Registry.Unregister(r.job.ID() + "/server")
		r.server = nil
	}
	if r.deviceID != "" {
		if err := r.rt.driver.Shutdown(tctx, r.deviceID); err != nil {
			r.logger.Warn("Device shutdown failed.", "device_id", r.deviceID, "error", err)
		}
		r.e.deps.Registry.Unregister(r.job.ID() + "/device")
		r.deviceID = ""
	}

	r.res.FinishedAt = time.Now()
}

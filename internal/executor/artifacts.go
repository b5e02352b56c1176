package executor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/shotmatrix/internal/result"
)

// artifactDirName is the subdirectory of the job's output dir that holds
// failure diagnostics, kept apart from the screenshots themselves.
const artifactDirName = "failure-artifacts"

// truncationMarker prefixes a device log that was cut to the byte cap.
const truncationMarker = "[log truncated to byte cap]\n"

// captureArtifacts collects failure diagnostics exactly once per job,
// before teardown. Every capture is independently best-effort: a
// diagnostic we cannot get is a debug note, never a second failure. A
// session that never launched simply contributes nothing.
func (r *jobRun) captureArtifacts(ctx context.Context) {
	if r.artifactsDone {
		return
	}
	r.artifactsDone = true

	// Detached from cancellation the same way teardown is; diagnostics
	// should survive a Ctrl-C arriving at the wrong moment.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.e.cfg.Timeouts.DeviceOp)
	defer cancel()

	dir := filepath.Join(r.job.OutputDir, artifactDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Debug("Could not create artifact directory.", "error", err)
		return
	}

	if r.session != nil {
		r.capturePageSource(actx, dir)
	}
	if r.deviceID != "" {
		r.captureFailureScreenshot(actx, dir)
		r.captureDeviceLogs(actx, dir)
	}
}

func (r *jobRun) capturePageSource(ctx context.Context, dir string) {
	source, err := r.session.PageSource(ctx)
	if err != nil {
		r.logger.Debug("Page source capture failed.", "error", err)
		return
	}
	r.writeArtifact(dir, "page-source.xml", []byte(source), result.ArtifactPageSource)
}

func (r *jobRun) captureFailureScreenshot(ctx context.Context, dir string) {
	data, err := r.rt.driver.Screenshot(ctx, r.deviceID)
	if err != nil {
		r.logger.Debug("Failure screenshot capture failed.", "error", err)
		return
	}
	r.writeArtifact(dir, "failure.png", data, result.ArtifactScreenshot)
}

// captureDeviceLogs tail-truncates the device log at the configured byte
// cap, marking the cut so nobody mistakes a truncated log for a full one.
func (r *jobRun) captureDeviceLogs(ctx context.Context, dir string) {
	limit := r.e.cfg.Artifacts.DeviceLogLimitBytes
	// Ask for one extra byte so truncation is detectable.
	logs, err := r.rt.driver.TailLogs(ctx, r.deviceID, limit+1)
	if err != nil {
		r.logger.Debug("Device log capture failed.", "error", err)
		return
	}
	if int64(len(logs)) > limit {
		logs = append([]byte(truncationMarker), logs[int64(len(logs))-limit:]...)
	}
	r.writeArtifact(dir, "device-logs.txt", logs, result.ArtifactDeviceLogs)
}

func (r *jobRun) writeArtifact(dir, name string, data []byte, kind result.ArtifactKind) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.logger.Debug("Writing artifact failed.", "kind", kind, "error", err)
		return
	}
	r.res.Artifacts = append(r.res.Artifacts, result.FailureArtifact{
		Kind:       kind,
		Path:       path,
		SizeBytes:  int64(len(data)),
		CapturedAt: time.Now(),
	})
	r.logger.Debug("Failure artifact captured.", "kind", kind, "path", path)
}

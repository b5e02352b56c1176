// Package result defines the outcome types for a run: per-screenshot and
// per-job results, failure diagnostics, and the aggregated run result the
// reporter serializes. Everything a reporter needs is computed here once;
// consumers never re-derive success or counts.
package result

import "time"

// JobStatus is the coarse outcome of one job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSuccess   JobStatus = "success"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// ScreenshotResult is one captured image.
type ScreenshotResult struct {
	Name       string    `json:"name"`
	Language   string    `json:"language"`
	Path       string    `json:"path"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	CapturedAt time.Time `json:"captured_at"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}

// ArtifactKind identifies what a failure diagnostic is.
type ArtifactKind string

const (
	ArtifactPageSource ArtifactKind = "page_source"
	ArtifactScreenshot ArtifactKind = "screenshot"
	ArtifactDeviceLogs ArtifactKind = "device_logs"
)

// FailureArtifact is one diagnostic captured when a job fails.
type FailureArtifact struct {
	Kind       ArtifactKind `json:"kind"`
	Path       string       `json:"path"`
	SizeBytes  int64        `json:"size_bytes"`
	CapturedAt time.Time    `json:"captured_at"`
}

// JobResult is the finalized outcome of one job. The executor is its sole
// writer; once FinishedAt is set it is never mutated again.
type JobResult struct {
	JobIndex    int                `json:"job_index"`
	Platform    string             `json:"platform"`
	Device      string             `json:"device"`
	Language    string             `json:"language"`
	Status      JobStatus          `json:"status"`
	Screenshots []ScreenshotResult `json:"screenshots,omitempty"`
	Artifacts   []FailureArtifact  `json:"artifacts,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Error       string             `json:"error,omitempty"`
}

// Duration is the wall-clock time the job took.
func (r *JobResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CapturedCount counts the successfully captured screenshots.
func (r *JobResult) CapturedCount() int {
	n := 0
	for _, s := range r.Screenshots {
		if s.OK {
			n++
		}
	}
	return n
}

// Environment records where and how the run executed.
type Environment struct {
	Hostname    string `json:"hostname"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	NumCPU      int    `json:"num_cpu"`
	Parallelism int    `json:"parallelism"`
}

// Summary holds the aggregate counts over all jobs.
type Summary struct {
	Jobs        int `json:"jobs"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Cancelled   int `json:"cancelled"`
	Platforms   int `json:"platforms"`
	Devices     int `json:"devices"`
	Languages   int `json:"languages"`
	Screenshots int `json:"screenshots"`
}

// RunResult is the aggregate outcome of one run. Immutable once built by
// Aggregate.
type RunResult struct {
	RunID       string      `json:"run_id"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Environment Environment `json:"environment"`
	Jobs        []JobResult `json:"jobs"`
	Summary     Summary     `json:"summary"`
	Success     bool        `json:"success"`
}

// Aggregate assembles the final RunResult from per-job outcomes. Success
// is true iff every job succeeded; an empty job list is not a success.
func Aggregate(runID string, started, finished time.Time, env Environment, jobs []JobResult) *RunResult {
	summary := Summary{Jobs: len(jobs)}
	platforms := make(map[string]bool)
	devices := make(map[string]bool)
	languages := make(map[string]bool)

	success := len(jobs) > 0
	for _, j := range jobs {
		switch j.Status {
		case StatusSuccess:
			summary.Succeeded++
		case StatusCancelled:
			summary.Cancelled++
			success = false
		default:
			summary.Failed++
			success = false
		}
		platforms[j.Platform] = true
		devices[j.Platform+"/"+j.Device] = true
		languages[j.Language] = true
		summary.Screenshots += j.CapturedCount()
	}
	summary.Platforms = len(platforms)
	summary.Devices = len(devices)
	summary.Languages = len(languages)

	return &RunResult{
		RunID:       runID,
		StartedAt:   started,
		FinishedAt:  finished,
		Environment: env,
		Jobs:        jobs,
		Summary:     summary,
		Success:     success,
	}
}

// Package orchestrator fans a run plan out to a bounded pool of workers
// and aggregates per-job outcomes into the run result. Jobs share no
// mutable state: each owns its port triple, device, and output
// directory, which is what makes the pool safe without locks around job
// execution itself.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vk/shotmatrix/internal/ctxlog"
	"github.com/vk/shotmatrix/internal/plan"
	"github.com/vk/shotmatrix/internal/result"
)

// JobRunner executes one job to a finalized result. The real
// implementation is the executor; tests substitute fakes.
type JobRunner interface {
	Run(ctx context.Context, job *plan.Job) *result.JobResult
}

// Parallelism computes the worker count: conservative, because every
// job monopolizes a full emulator/simulator and an automation server,
// not just a CPU core. A positive cap can lower it further, never raise.
func Parallelism(jobCount, limit int) int {
	workers := runtime.NumCPU() / 2
	if workers > jobCount {
		workers = jobCount
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// Orchestrator schedules jobs and owns RunResult assembly. It never
// mutates a JobResult after collecting it.
type Orchestrator struct {
	runner    JobRunner
	workerCap int

	mu     sync.Mutex
	states []result.JobStatus
}

// New creates an orchestrator. workerCap <= 0 means "no extra cap".
func New(runner JobRunner, workerCap int) *Orchestrator {
	return &Orchestrator{runner: runner, workerCap: workerCap}
}

// Execute runs the whole plan under bounded concurrency and returns the
// aggregated result. Submission follows plan order; completion order is
// unconstrained, so results land in index-addressed slots. Cancellation
// lets in-flight jobs finish their teardown before Execute returns.
func (o *Orchestrator) Execute(ctx context.Context, p *plan.Plan) *result.RunResult {
	logger := ctxlog.FromContext(ctx)
	started := time.Now()
	workers := Parallelism(len(p.Jobs), o.workerCap)

	o.mu.Lock()
	o.states = make([]result.JobStatus, len(p.Jobs))
	for i := range o.states {
		o.states[i] = result.StatusPending
	}
	o.mu.Unlock()

	jobs := make(chan *plan.Job, len(p.Jobs))
	for _, job := range p.Jobs {
		jobs <- job
	}
	close(jobs)

	results := make([]result.JobResult, len(p.Jobs))

	logger.Info("🚀 Starting concurrent execution...", "jobs", len(p.Jobs), "workers", workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go o.worker(ctx, i, jobs, results, &wg)
	}
	wg.Wait()
	logger.Info("🏁 Execution finished.")

	hostname, _ := os.Hostname()
	env := result.Environment{
		Hostname:    hostname,
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		NumCPU:      runtime.NumCPU(),
		Parallelism: workers,
	}
	return result.Aggregate(uuid.NewString(), started, time.Now(), env, results)
}

// worker drains the job channel. Each job writes only its own result
// slot, so workers never contend on the results slice.
func (o *Orchestrator) worker(ctx context.Context, workerID int, jobs <-chan *plan.Job, results []result.JobResult, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for job := range jobs {
		o.setStatus(job.Index, result.StatusRunning)
		res := o.runIsolated(ctx, job)
		results[job.Index] = *res
		o.setStatus(job.Index, res.Status)

		if res.Status != result.StatusSuccess {
			logger.Debug("Worker finished job.", "workerID", workerID, "job", job.ID(), "status", res.Status)
		}
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// runIsolated is the per-job error boundary: a crash inside one job's
// worker must not terminate or corrupt sibling jobs.
func (o *Orchestrator) runIsolated(ctx context.Context, job *plan.Job) (res *result.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Job panicked.", "job", job.ID(), "panic", r)
			res = &result.JobResult{
				JobIndex:   job.Index,
				Platform:   string(job.Platform),
				Device:     job.Device().Name,
				Language:   job.Language.Code,
				Status:     result.StatusFailed,
				StartedAt:  time.Now(),
				FinishedAt: time.Now(),
				Error:      fmt.Sprintf("job panicked: %v", r),
			}
		}
	}()
	return o.runner.Run(ctx, job)
}

func (o *Orchestrator) setStatus(index int, s result.JobStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index >= 0 && index < len(o.states) {
		o.states[index] = s
	}
}

// Progress is a point-in-time snapshot of the run for the status server.
type Progress struct {
	Jobs      []result.JobStatus `json:"jobs"`
	Pending   int                `json:"pending"`
	Running   int                `json:"running"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Cancelled int                `json:"cancelled"`
}

// Progress returns the live state of every job slot.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()

	p := Progress{Jobs: make([]result.JobStatus, len(o.states))}
	copy(p.Jobs, o.states)
	for _, s := range p.Jobs {
		switch s {
		case result.StatusPending:
			p.Pending++
		case result.StatusRunning:
			p.Running++
		case result.StatusSuccess:
			p.Succeeded++
		case result.StatusFailed:
			p.Failed++
		case result.StatusCancelled:
			p.Cancelled++
		}
	}
	return p
}

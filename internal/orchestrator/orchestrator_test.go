package orchestrator_test

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shotmatrix/internal/orchestrator"
	"github.com/vk/shotmatrix/internal/plan"
	"github.com/vk/shotmatrix/internal/result"
	"github.com/vk/shotmatrix/internal/testutil"
)

// stubRunner finalizes every job with a canned status, optionally
// sleeping to scramble completion order.
type stubRunner struct {
	mu       sync.Mutex
	statusOf func(job *plan.Job) result.JobStatus
	delayOf  func(job *plan.Job) time.Duration
	ran      []int
}

func (s *stubRunner) Run(ctx context.Context, job *plan.Job) *result.JobResult {
	if s.delayOf != nil {
		select {
		case <-ctx.Done():
		case <-time.After(s.delayOf(job)):
		}
	}
	s.mu.Lock()
	s.ran = append(s.ran, job.Index)
	s.mu.Unlock()

	status := result.StatusSuccess
	if s.statusOf != nil {
		status = s.statusOf(job)
	}
	if ctx.Err() != nil {
		status = result.StatusCancelled
	}
	res := &result.JobResult{
		JobIndex:   job.Index,
		Platform:   string(job.Platform),
		Device:     job.Device().Name,
		Language:   job.Language.Code,
		Status:     status,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	if status == result.StatusFailed {
		res.Error = "stub failure"
	}
	return res
}

func buildPlan(t *testing.T) *plan.Plan {
	t.Helper()
	p, err := testutil.BuildPlan(testutil.TestModel(), t.TempDir())
	require.NoError(t, err)
	return p
}

func TestParallelism(t *testing.T) {
	t.Parallel()

	half := runtime.NumCPU() / 2

	tests := []struct {
		name     string
		jobCount int
		limit    int
		want     int
	}{
		{"never below one", 1, 0, 1},
		{"capped by job count", 2, 0, min(2, max(1, half))},
		{"limit lowers", 100, 1, 1},
		{"limit never raises", 1, 50, 1},
		{"zero jobs still one worker", 0, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, orchestrator.Parallelism(tc.jobCount, tc.limit))
		})
	}
}

func TestExecute_AggregatesAllJobs(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := buildPlan(t)
	runner := &stubRunner{}
	orch := orchestrator.New(runner, 2)

	// --- Act ---
	run := orch.Execute(context.Background(), p)

	// --- Assert ---
	require.Len(t, run.Jobs, 4)
	assert.True(t, run.Success)
	assert.Equal(t, 4, run.Summary.Succeeded)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, runtime.GOOS, run.Environment.OS)

	// Every result landed in its own index-addressed slot.
	for i, res := range run.Jobs {
		assert.Equal(t, i, res.JobIndex)
		assert.Equal(t, result.StatusSuccess, res.Status)
	}
}

func TestExecute_ResultsIndexedRegardlessOfCompletionOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Earlier jobs sleep longer, so completion order is the reverse of
	// submission order.
	p := buildPlan(t)
	runner := &stubRunner{
		delayOf: func(job *plan.Job) time.Duration {
			return time.Duration(len(p.Jobs)-job.Index) * 10 * time.Millisecond
		},
	}
	orch := orchestrator.New(runner, len(p.Jobs))

	// --- Act ---
	run := orch.Execute(context.Background(), p)

	// --- Assert ---
	require.Len(t, run.Jobs, 4)
	for i, res := range run.Jobs {
		assert.Equal(t, i, res.JobIndex)
		assert.Equal(t, p.Jobs[i].Language.Code, res.Language)
	}
}

func TestExecute_SingleFailureFlipsRunToFailed(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := buildPlan(t)
	runner := &stubRunner{
		statusOf: func(job *plan.Job) result.JobStatus {
			if job.Index == 2 {
				return result.StatusFailed
			}
			return result.StatusSuccess
		},
	}
	orch := orchestrator.New(runner, 2)

	// --- Act ---
	run := orch.Execute(context.Background(), p)

	// --- Assert ---
	assert.False(t, run.Success)
	assert.Equal(t, 3, run.Summary.Succeeded)
	assert.Equal(t, 1, run.Summary.Failed)
	assert.Equal(t, result.StatusFailed, run.Jobs[2].Status)
	assert.NotEmpty(t, run.Jobs[2].Error)
}

func TestExecute_PanickingJobIsIsolated(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := buildPlan(t)
	runner := panickyRunner{panicOn: 1}
	orch := orchestrator.New(runner, 1)

	// --- Act ---
	run := orch.Execute(context.Background(), p)

	// --- Assert ---
	// The panicking job becomes a failed result; its siblings still run.
	require.Len(t, run.Jobs, 4)
	assert.False(t, run.Success)
	assert.Equal(t, result.StatusFailed, run.Jobs[1].Status)
	assert.Contains(t, run.Jobs[1].Error, "job panicked")
	assert.Equal(t, result.StatusSuccess, run.Jobs[0].Status)
	assert.Equal(t, result.StatusSuccess, run.Jobs[2].Status)
	assert.Equal(t, result.StatusSuccess, run.Jobs[3].Status)
}

type panickyRunner struct {
	panicOn int
}

func (r panickyRunner) Run(ctx context.Context, job *plan.Job) *result.JobResult {
	if job.Index == r.panicOn {
		panic("kaboom")
	}
	return &result.JobResult{
		JobIndex:   job.Index,
		Platform:   string(job.Platform),
		Device:     job.Device().Name,
		Language:   job.Language.Code,
		Status:     result.StatusSuccess,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
}

func TestExecute_CancellationLeavesEveryJobTerminal(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := buildPlan(t)
	runner := &stubRunner{
		delayOf: func(*plan.Job) time.Duration { return 20 * time.Millisecond },
	}
	orch := orchestrator.New(runner, 1)
	ctx, cancel := context.WithCancel(context.Background())

	// --- Act ---
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	run := orch.Execute(ctx, p)

	// --- Assert ---
	require.Len(t, run.Jobs, 4)
	assert.False(t, run.Success)
	for _, res := range run.Jobs {
		assert.True(t, res.Status.Terminal(), "job %d left in state %q", res.JobIndex, res.Status)
	}
	assert.Positive(t, run.Summary.Cancelled)
}

func TestProgress_TracksTerminalCounts(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := buildPlan(t)
	runner := &stubRunner{
		statusOf: func(job *plan.Job) result.JobStatus {
			if job.Index == 0 {
				return result.StatusFailed
			}
			return result.StatusSuccess
		},
	}
	orch := orchestrator.New(runner, 2)

	// --- Act ---
	orch.Execute(context.Background(), p)
	progress := orch.Progress()

	// --- Assert ---
	require.Len(t, progress.Jobs, 4)
	assert.Equal(t, 0, progress.Pending)
	assert.Equal(t, 0, progress.Running)
	assert.Equal(t, 3, progress.Succeeded)
	assert.Equal(t, 1, progress.Failed)
}

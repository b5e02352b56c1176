package result

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func jobWith(index int, status JobStatus, shots int) JobResult {
	j := JobResult{
		JobIndex:  index,
		Platform:  "ios",
		Device:    "iPhone 15 Pro",
		Language:  "en-US",
		Status:    status,
		StartedAt: time.Now(),
	}
	j.FinishedAt = j.StartedAt.Add(time.Second)
	for i := 0; i < shots; i++ {
		j.Screenshots = append(j.Screenshots, ScreenshotResult{Name: "home", OK: true})
	}
	return j
}

func TestAggregate_AllSucceeded(t *testing.T) {
	t.Parallel()

	jobs := []JobResult{
		jobWith(0, StatusSuccess, 2),
		jobWith(1, StatusSuccess, 2),
	}
	run := Aggregate("run-1", time.Now(), time.Now(), Environment{}, jobs)

	assert.True(t, run.Success)
	assert.Equal(t, 2, run.Summary.Jobs)
	assert.Equal(t, 2, run.Summary.Succeeded)
	assert.Equal(t, 0, run.Summary.Failed)
	assert.Equal(t, 4, run.Summary.Screenshots)
}

func TestAggregate_AnyFailureFlipsSuccess(t *testing.T) {
	t.Parallel()

	jobs := []JobResult{
		jobWith(0, StatusSuccess, 2),
		jobWith(1, StatusFailed, 0),
		jobWith(2, StatusCancelled, 0),
	}
	run := Aggregate("run-1", time.Now(), time.Now(), Environment{}, jobs)

	assert.False(t, run.Success)
	assert.Equal(t, 1, run.Summary.Succeeded)
	assert.Equal(t, 1, run.Summary.Failed)
	assert.Equal(t, 1, run.Summary.Cancelled)
}

func TestAggregate_EmptyRunIsNotASuccess(t *testing.T) {
	t.Parallel()

	run := Aggregate("run-1", time.Now(), time.Now(), Environment{}, nil)

	assert.False(t, run.Success)
	assert.Equal(t, 0, run.Summary.Jobs)
}

func TestAggregate_DistinctCounts(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Same device name on both platforms must count as two devices.
	a := jobWith(0, StatusSuccess, 1)
	b := jobWith(1, StatusSuccess, 1)
	b.Platform = "android"
	c := jobWith(2, StatusSuccess, 1)
	c.Language = "de-DE"

	// --- Act ---
	run := Aggregate("run-1", time.Now(), time.Now(), Environment{}, []JobResult{a, b, c})

	// --- Assert ---
	assert.Equal(t, 2, run.Summary.Platforms)
	assert.Equal(t, 2, run.Summary.Devices)
	assert.Equal(t, 2, run.Summary.Languages)
}

func TestJobStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestJobResult_Duration(t *testing.T) {
	t.Parallel()

	j := jobWith(0, StatusSuccess, 0)
	assert.Equal(t, time.Second, j.Duration())

	unfinished := JobResult{StartedAt: time.Now()}
	assert.Equal(t, time.Duration(0), unfinished.Duration())
}

func TestJobResult_CapturedCount(t *testing.T) {
	t.Parallel()

	j := JobResult{Screenshots: []ScreenshotResult{
		{Name: "home", OK: true},
		{Name: "gallery", OK: false, Error: "boom"},
		{Name: "settings", OK: true},
	}}
	assert.Equal(t, 2, j.CapturedCount())
}

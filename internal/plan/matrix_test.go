package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shotmatrix/internal/plan"
	"github.com/vk/shotmatrix/internal/testutil"
)

func buildTestPlan(t *testing.T) *plan.Plan {
	t.Helper()
	p, err := plan.Build(testutil.TestModel(), "out", plan.Filters{}, plan.Overrides{},
		newAllocator(t), testutil.FakeResolver{})
	require.NoError(t, err)
	return p
}

func TestMatrix_FlatRecords(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := buildTestPlan(t)

	// --- Act ---
	records := p.Matrix()

	// --- Assert ---
	require.Len(t, records, 4)
	for i, r := range records {
		assert.Equal(t, p.Jobs[i].ID(), r.ID)
		assert.Equal(t, p.Jobs[i].OutputDir, r.OutputDir)
		assert.Equal(t, p.Jobs[i].Ports, r.Ports)
		assert.Equal(t, 2, r.Screenshots)
	}
	assert.Equal(t, "job-0", records[0].ID)
	assert.Equal(t, "job-3", records[3].ID)
}

func TestMatrixBy_Grouping(t *testing.T) {
	t.Parallel()

	p := buildTestPlan(t)

	t.Run("by platform", func(t *testing.T) {
		grouped, err := p.MatrixBy(plan.GroupByPlatform)
		require.NoError(t, err)
		require.Len(t, grouped, 2)
		assert.Len(t, grouped["ios"], 2)
		assert.Len(t, grouped["android"], 2)
	})

	t.Run("by device folder", func(t *testing.T) {
		grouped, err := p.MatrixBy(plan.GroupByDevice)
		require.NoError(t, err)
		require.Len(t, grouped, 2)
		assert.Len(t, grouped["iphone-15-pro"], 2)
		assert.Len(t, grouped["pixel-8"], 2)
	})

	t.Run("by language", func(t *testing.T) {
		grouped, err := p.MatrixBy(plan.GroupByLanguage)
		require.NoError(t, err)
		require.Len(t, grouped, 2)
		assert.Len(t, grouped["en-US"], 2)
		assert.Len(t, grouped["de-DE"], 2)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := p.MatrixBy(plan.GroupKey("color"))
		require.Error(t, err)
	})
}

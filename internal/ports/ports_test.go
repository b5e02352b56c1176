package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("accepts sane settings", func(t *testing.T) {
		a, err := New(4723, 10)
		require.NoError(t, err)
		assert.NotNil(t, a)
	})

	t.Run("error cases", func(t *testing.T) {
		cases := []struct {
			name   string
			base   int
			offset int
			want   string
		}{
			{"base below privileged boundary", 80, 10, "base port must be within"},
			{"base above range", 70000, 10, "base port must be within"},
			{"offset too small to be disjoint", 4723, 2, "offset must be at least"},
			{"offset exhausts port space", 4723, 500, "offset must not exceed"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := New(tc.base, tc.offset)
				require.Error(t, err)
				var rangeErr *RangeError
				require.ErrorAs(t, err, &rangeErr)
				assert.Contains(t, err.Error(), tc.want)
			})
		}
	})
}

func TestAllocate_Deterministic(t *testing.T) {
	a, err := New(4723, 10)
	require.NoError(t, err)

	first, err := a.Allocate(3)
	require.NoError(t, err)
	second, err := a.Allocate(3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 4753, first.Automation)
	assert.Equal(t, 4754, first.IOSAux)
	assert.Equal(t, 4755, first.AndroidAux)
}

func TestAllocate_DisjointAcrossIndices(t *testing.T) {
	a, err := New(4723, 10)
	require.NoError(t, err)

	// Collect every port handed out across a realistic concurrency window
	// and assert no two indices share one.
	seen := make(map[int]int)
	for index := 0; index < 32; index++ {
		alloc, err := a.Allocate(index)
		require.NoError(t, err)
		for _, p := range alloc.Ports() {
			owner, taken := seen[p]
			require.False(t, taken, "port %d allocated to both index %d and %d", p, owner, index)
			seen[p] = index
		}
	}
}

func TestAllocate_Errors(t *testing.T) {
	a, err := New(65500, 20)
	require.NoError(t, err)

	t.Run("negative index", func(t *testing.T) {
		_, err := a.Allocate(-1)
		var rangeErr *RangeError
		require.ErrorAs(t, err, &rangeErr)
	})

	t.Run("index walks past end of port range", func(t *testing.T) {
		_, err := a.Allocate(5)
		var rangeErr *RangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Equal(t, 5, rangeErr.Index)
	})
}

package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	tcs := []struct {
		name          string
		total         int
		chunkDuration int
		overlap       int
		expected      []Window
	}{
		{
			name:          "three windows",
			total:         1200,
			chunkDuration: 480,
			overlap:       30,
			expected: []Window{
				{Start: 0, End: 480, Index: 1},
				{Start: 450, End: 930, Index: 2},
				{Start: 900, End: 1200, Index: 3},
			},
		},
		{
			name:          "shorter than a chunk",
			total:         100,
			chunkDuration: 480,
			overlap:       30,
			expected: []Window{
				{Start: 0, End: 100, Index: 1},
			},
		},
		{
			name:          "exactly one chunk",
			total:         480,
			chunkDuration: 480,
			overlap:       30,
			expected: []Window{
				{Start: 0, End: 480, Index: 1},
			},
		},
		{
			name:          "no overlap",
			total:         25,
			chunkDuration: 10,
			overlap:       0,
			expected: []Window{
				{Start: 0, End: 10, Index: 1},
				{Start: 10, End: 20, Index: 2},
				{Start: 20, End: 25, Index: 3},
			},
		},
		{
			name:          "last window ends exactly on boundary",
			total:         930,
			chunkDuration: 480,
			overlap:       30,
			expected: []Window{
				{Start: 0, End: 480, Index: 1},
				{Start: 450, End: 930, Index: 2},
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			windows, err := Plan(tc.total, tc.chunkDuration, tc.overlap)
			require.NoError(t, err)
			require.Equal(t, tc.expected, windows)
			require.True(t, Covers(windows, tc.total))
		})
	}
}

func TestPlanInvalidParameters(t *testing.T) {
	tcs := []struct {
		name          string
		total         int
		chunkDuration int
		overlap       int
		expectedError string
	}{
		{
			name:          "zero duration",
			total:         0,
			chunkDuration: 480,
			overlap:       30,
			expectedError: "invalid chunking parameters: total duration must be positive, got 0",
		},
		{
			name:          "overlap equals chunk duration",
			total:         1000,
			chunkDuration: 30,
			overlap:       30,
			expectedError: "invalid chunking parameters: chunk duration 30 must be greater than overlap 30",
		},
		{
			name:          "zero chunk duration",
			total:         1000,
			chunkDuration: 0,
			overlap:       0,
			expectedError: "invalid chunking parameters: chunk duration must be positive, got 0",
		},
		{
			name:          "negative overlap",
			total:         1000,
			chunkDuration: 30,
			overlap:       -1,
			expectedError: "invalid chunking parameters: overlap cannot be negative, got -1",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			windows, err := Plan(tc.total, tc.chunkDuration, tc.overlap)
			require.ErrorIs(t, err, ErrInvalidParameters)
			require.EqualError(t, err, tc.expectedError)
			require.Nil(t, windows)
		})
	}
}

func TestPlanCoverage(t *testing.T) {
	for total := 1; total <= 400; total += 7 {
		for _, params := range [][2]int{{60, 0}, {60, 10}, {60, 59}, {45, 30}, {1, 0}} {
			windows, err := Plan(total, params[0], params[1])
			require.NoError(t, err)
			require.True(t, Covers(windows, total), "total=%d chunk=%d overlap=%d", total, params[0], params[1])
			require.Equal(t, 0, windows[0].Start)
			require.Equal(t, total, windows[len(windows)-1].End)

			for i := 1; i < len(windows); i++ {
				require.Equal(t, i+1, windows[i].Index)
				require.GreaterOrEqual(t, windows[i].Start, windows[i-1].Start)
				require.Equal(t, windows[i-1].End-params[1], windows[i].Start)
			}
		}
	}
}

func TestWindowString(t *testing.T) {
	require.Equal(t, "chunk 2 (07:30-15:30)", Window{Start: 450, End: 930, Index: 2}.String())
	require.Equal(t, "75:00", FormatTS(4500))
	require.Equal(t, "00:05", FormatTS(5))
}

package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{
			name:   "median of odd series",
			values: []float64{3, 1, 2},
			q:      0.5,
			want:   2,
		},
		{
			name:   "median interpolates between middle values",
			values: []float64{1, 2, 3, 4},
			q:      0.5,
			want:   2.5,
		},
		{
			name:   "quartile lands between ranks",
			values: []float64{10, 20, 30, 40},
			q:      0.25,
			want:   17.5,
		},
		{
			name:   "min and max at the extremes",
			values: []float64{5, 1, 9},
			q:      0,
			want:   1,
		},
		{
			name:   "single value",
			values: []float64{42},
			q:      0.75,
			want:   42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quantile(tt.values, tt.q)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestQuantile_EmptySeries(t *testing.T) {
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestQuantile_DoesNotModifyInput(t *testing.T) {
	values := []float64{5, 1, 3}
	_ = Quantile(values, 0.5)
	assert.Equal(t, []float64{5, 1, 3}, values)
}

func TestIQRBounds(t *testing.T) {
	// Six observations split between two price points.
	values := []float64{100, 100, 100, 120, 120, 120}

	bounds := IQRBounds(values, 2.0)

	require.InDelta(t, 100, bounds.Q1, 1e-9)
	require.InDelta(t, 120, bounds.Q3, 1e-9)
	require.InDelta(t, 20, bounds.IQR, 1e-9)
	assert.InDelta(t, 60, bounds.Lower, 1e-9)
	assert.InDelta(t, 160, bounds.Upper, 1e-9)

	assert.True(t, Outside(bounds, 300), "300 is far above the envelope")
	assert.False(t, Outside(bounds, 150), "150 sits inside the envelope")
	assert.False(t, Outside(bounds, 60), "boundary values are inside")
}

func TestMean(t *testing.T) {
	assert.InDelta(t, 2, Mean([]float64{1, 2, 3}), 1e-9)
	assert.True(t, math.IsNaN(Mean(nil)))
}

func TestStdDev(t *testing.T) {
	// Sample standard deviation of 2,4,4,4,5,5,7,9 is ~2.138.
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.138, StdDev(values), 0.001)

	assert.True(t, math.IsNaN(StdDev([]float64{1})))
}

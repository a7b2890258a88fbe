// Package stats implements the second detection layer: robust per-group
// outlier detection built on interquartile-range envelopes, plus two
// time-series behavioral detectors.
package stats

import (
	"math"
	"sort"

	"github.com/exportops/tradewatch/internal/model"
)

// Quantile computes the q-th quantile (0 ≤ q ≤ 1) of values using linear
// interpolation at rank q·(n−1) over the ascending-sorted series. This is
// the standard definition shared with numpy/pandas, so bounds are
// bit-reproducible for a fixed input. The input slice is not modified.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// IQRBounds computes the dispersion envelope for a series:
// lower = Q1 − k·IQR, upper = Q3 + k·IQR.
func IQRBounds(values []float64, k float64) model.StatBounds {
	q1 := Quantile(values, 0.25)
	q3 := Quantile(values, 0.75)
	iqr := q3 - q1

	return model.StatBounds{
		Lower: q1 - k*iqr,
		Upper: q3 + k*iqr,
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
	}
}

// Outside reports whether v falls outside the envelope.
func Outside(b model.StatBounds, v float64) bool {
	return v < b.Lower || v > b.Upper
}

// Mean returns the arithmetic mean of values, NaN for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation (n−1 denominator) of values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

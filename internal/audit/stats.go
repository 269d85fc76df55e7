package audit

import (
	"math"
	"sort"
)

// madScale converts a MAD into a z-score comparable to a standard normal.
const madScale = 0.6745

// median returns the middle value, averaging the two middles for an even
// count. It does not modify values.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// medianAbsDeviation is the unscaled median of |v - med|.
func medianAbsDeviation(values []float64, med float64) float64 {
	if len(values) == 0 {
		return 0
	}

	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	return median(dev)
}

// robustZ scores v against med and mad. A zero MAD falls back to the raw
// absolute distance so a flat series still exposes a single spike.
func robustZ(v, med, mad float64) float64 {
	if mad == 0 {
		return math.Abs(v - med)
	}
	return madScale * (v - med) / mad
}

package math

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MinMax returns the smallest and largest value. ok is false for an empty slice.
func MinMax(values []float64) (min, max float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}

	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, true
}

// Range returns max-min, or 0 for an empty slice.
func Range(values []float64) float64 {
	min, max, ok := MinMax(values)
	if !ok {
		return 0
	}
	return max - min
}

// DistinctCount returns the number of distinct values.
func DistinctCount(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// QuantileEdges returns the edges of bins equal-frequency bins over values.
// The first and last edge are the minimum and maximum. Edges that collapse
// onto the previous one are dropped, so fewer than bins+1 edges may come back.
func QuantileEdges(values []float64, bins int) []float64 {
	if len(values) == 0 || bins < 1 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	edges := make([]float64, 0, bins+1)
	edges = append(edges, sorted[0])
	for i := 1; i < bins; i++ {
		p := float64(i) / float64(bins)
		q := stat.Quantile(p, stat.LinInterp, sorted, nil)
		if q-edges[len(edges)-1] > 1e-8 {
			edges = append(edges, q)
		}
	}

	last := sorted[len(sorted)-1]
	if last-edges[len(edges)-1] > 1e-8 {
		edges = append(edges, last)
	} else if len(edges) == 1 {
		edges = append(edges, last)
	} else {
		edges[len(edges)-1] = last
	}

	return edges
}

// BinIndex returns the bin of v given edges from QuantileEdges. Values on an
// inner edge fall into the upper bin; values outside the edges are clamped.
func BinIndex(v float64, edges []float64) int {
	bins := len(edges) - 1
	if bins <= 0 {
		return 0
	}
	inner := edges[1:bins]
	idx := sort.Search(len(inner), func(i int) bool { return inner[i] > v })
	if idx >= bins {
		idx = bins - 1
	}
	return idx
}

// Round rounds v to the given number of decimal places.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinMax(t *testing.T) {
	min, max, ok := MinMax([]float64{3, -1, 7, 2})
	require.True(t, ok)
	assert.Equal(t, -1.0, min)
	assert.Equal(t, 7.0, max)

	_, _, ok = MinMax(nil)
	assert.False(t, ok)

	assert.Equal(t, 8.0, Range([]float64{3, -1, 7, 2}))
	assert.Equal(t, 0.0, Range(nil))
}

func TestDistinctCount(t *testing.T) {
	assert.Equal(t, 3, DistinctCount([]float64{1, 1, 2, 3, 3, 3}))
	assert.Equal(t, 0, DistinctCount(nil))
}

func TestMeanAndStandardDeviation(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(values), 1e-12)
	assert.InDelta(t, 2.138, StandardDeviation(values), 1e-3)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StandardDeviation([]float64{4}))
}

func TestQuantileEdges(t *testing.T) {
	values := []float64{9, 1, 5, 3, 7, 2, 8, 4, 6, 10}
	edges := QuantileEdges(values, 4)

	require.GreaterOrEqual(t, len(edges), 2)
	assert.Equal(t, 1.0, edges[0])
	assert.Equal(t, 10.0, edges[len(edges)-1])
	assert.LessOrEqual(t, len(edges), 5)
	for i := 1; i < len(edges); i++ {
		assert.Greater(t, edges[i], edges[i-1], "edges must be strictly increasing")
	}

	// input order is left alone
	assert.Equal(t, 9.0, values[0])
}

func TestQuantileEdgesCollapsesDuplicates(t *testing.T) {
	edges := QuantileEdges([]float64{1, 1, 1, 1, 1, 1, 1, 2}, 4)
	assert.Equal(t, []float64{1, 2}, edges)

	edges = QuantileEdges([]float64{5, 5, 5}, 3)
	assert.Equal(t, []float64{5, 5}, edges)

	assert.Nil(t, QuantileEdges(nil, 3))
	assert.Nil(t, QuantileEdges([]float64{1}, 0))
}

func TestBinIndex(t *testing.T) {
	edges := []float64{0, 10, 20, 30}

	assert.Equal(t, 0, BinIndex(0, edges))
	assert.Equal(t, 0, BinIndex(9.99, edges))
	assert.Equal(t, 1, BinIndex(10, edges), "inner edges belong to the upper bin")
	assert.Equal(t, 2, BinIndex(25, edges))
	assert.Equal(t, 2, BinIndex(30, edges), "the maximum falls in the last bin")
	assert.Equal(t, 2, BinIndex(99, edges))
	assert.Equal(t, 0, BinIndex(-5, edges))
	assert.Equal(t, 0, BinIndex(5, []float64{5, 5}))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 3.14, Round(3.14159, 2))
	assert.Equal(t, 3.0, Round(3.4, 0))
	assert.Equal(t, 4.0, Round(3.5, -2))
}

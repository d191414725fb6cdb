package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestRangeProcessorUniformProducesNWithinBounds(t *testing.T) {
	rp, err := NewRangeProcessor(StrategyUniform, []float64{-3, -3}, []float64{3, 3}, nil, 8, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	var got int
	for v := rp.NextVector(); v != nil; v = rp.NextVector() {
		got++
		for i, vi := range v {
			require.GreaterOrEqualf(t, vi, -3.0, "draw %v out of bounds at dim %d", v, i)
			require.LessOrEqualf(t, vi, 3.0, "draw %v out of bounds at dim %d", v, i)
		}
	}
	require.Equal(t, 8, got)
}

func TestRangeProcessorStaticValuesFixNonVaryingDims(t *testing.T) {
	vary := []bool{true, false}
	rp, err := NewRangeProcessor(StrategyUniform, []float64{-3, -3}, []float64{3, 3}, vary, 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	rp.SetStaticValues([]float64{0, 2.5})
	for v := rp.NextVector(); v != nil; v = rp.NextVector() {
		require.Equal(t, 2.5, v[1])
	}
}

func TestRangeProcessorGridCoversLatticeEndpoints(t *testing.T) {
	rp, err := NewRangeProcessor(StrategyGrid, []float64{0, 0}, []float64{1, 1}, nil, 9, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	var sawOrigin, sawCorner bool
	for v := rp.NextVector(); v != nil; v = rp.NextVector() {
		if v[0] == 0 && v[1] == 0 {
			sawOrigin = true
		}
		if v[0] == 1 && v[1] == 1 {
			sawCorner = true
		}
	}
	require.True(t, sawOrigin, "grid strategy did not cover the origin lattice endpoint")
	require.True(t, sawCorner, "grid strategy did not cover the corner lattice endpoint")
}

func TestRangeProcessorLHSStartsAreDistinct(t *testing.T) {
	rp, err := NewRangeProcessor(StrategyLHS, []float64{-3, -3}, []float64{3, 3}, nil, 8, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	seen := make(map[[2]float64]bool)
	for v := rp.NextVector(); v != nil; v = rp.NextVector() {
		key := [2]float64{v[0], v[1]}
		require.Falsef(t, seen[key], "duplicate LHS draw %v", v)
		seen[key] = true
	}
	require.Len(t, seen, 8)
}

func TestRangeProcessorRemainingCountsDown(t *testing.T) {
	rp, err := NewRangeProcessor(StrategyUniform, []float64{0}, []float64{1}, nil, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, 3, rp.Remaining())
	rp.NextVector()
	require.Equal(t, 2, rp.Remaining())
	rp.NextVector()
	rp.NextVector()
	require.Nil(t, rp.NextVector(), "expected nil once N vectors have been produced")
}

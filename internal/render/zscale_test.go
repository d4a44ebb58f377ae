package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZScale_Constant(t *testing.T) {
	values := make([]float64, 100*100)
	for i := range values {
		values[i] = 7
	}
	vmin, vmax := DefaultZScale().Limits(values)
	assert.Equal(t, 7.0, vmin)
	assert.Equal(t, 7.0, vmax)
}

func TestZScale_NoFiniteValues(t *testing.T) {
	vmin, vmax := DefaultZScale().Limits(nil)
	assert.Equal(t, 0.0, vmin)
	assert.Equal(t, 0.0, vmax)

	vmin, vmax = DefaultZScale().Limits([]float64{math.NaN(), math.Inf(1), math.Inf(-1)})
	assert.Equal(t, 0.0, vmin)
	assert.Equal(t, 0.0, vmax)
}

func TestZScale_FewPixelsUseFullRange(t *testing.T) {
	vmin, vmax := DefaultZScale().Limits([]float64{3, 1, 2})
	assert.Equal(t, 1.0, vmin)
	assert.Equal(t, 3.0, vmax)
}

func TestZScale_LinearRamp(t *testing.T) {
	values := make([]float64, 10000)
	for i := range values {
		values[i] = float64(i)
	}
	vmin, vmax := DefaultZScale().Limits(values)
	assert.Equal(t, 0.0, vmin)
	assert.Equal(t, 9990.0, vmax, "last strided sample")
}

func TestZScale_RejectsOutliers(t *testing.T) {
	values := make([]float64, 10000)
	for i := range values {
		values[i] = 100 + float64(i%10)
		if i%500 == 0 {
			values[i] = 1e6
		}
	}
	vmin, vmax := DefaultZScale().Limits(values)
	assert.LessOrEqual(t, vmin, vmax)
	assert.GreaterOrEqual(t, vmin, 100.0)
	assert.Less(t, vmax, 1e5, "outliers must not set the upper limit")
}

func TestZScale_IgnoresNaN(t *testing.T) {
	values := []float64{math.NaN(), 5, 5, 5, 5, 5, 5, math.NaN()}
	vmin, vmax := DefaultZScale().Limits(values)
	assert.Equal(t, 5.0, vmin)
	assert.Equal(t, 5.0, vmax)
}

func TestZScale_VMinNeverExceedsVMax(t *testing.T) {
	patterns := [][]float64{
		{1, 2},
		{-5, 5, -5, 5, -5, 5, -5, 5},
		{0, 0, 0, 0, 0, 1e9},
		{1e-9, 2e-9, 3e-9, 4e-9, 5e-9, 6e-9, 7e-9},
	}
	for _, p := range patterns {
		vmin, vmax := DefaultZScale().Limits(p)
		assert.LessOrEqual(t, vmin, vmax, "%v", p)
	}
}

func TestZScale_Sample(t *testing.T) {
	z := DefaultZScale()
	z.NSamples = 10

	values := make([]float64, 35)
	for i := range values {
		values[i] = float64(i)
	}
	assert.Equal(t, []float64{0, 3, 6, 9, 12, 15, 18, 21, 24, 27}, z.sample(values))
	assert.Equal(t, []float64{1, 2}, z.sample([]float64{1, math.NaN(), 2}))
}

func TestDilate(t *testing.T) {
	bad := []bool{false, false, false, true, false, false, false, false}
	assert.Equal(t,
		[]bool{false, false, true, true, true, true, false, false},
		dilate(bad, 4))

	assert.Equal(t, bad, dilate(bad, 1))

	edge := []bool{true, false, false, false, false}
	assert.Equal(t, []bool{true, true, true, false, false}, dilate(edge, 5))
}

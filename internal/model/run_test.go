package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRunStateValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state RunState
		want  string
	}{
		{RunStateIdle, "idle"},
		{RunStateQuerying, "querying"},
		{RunStateSelecting, "selecting"},
		{RunStateRetrieving, "retrieving"},
		{RunStateExtracting, "extracting"},
		{RunStateRendering, "rendering"},
		{RunStateDone, "done"},
		{RunStateFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.state))
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("spectrum", func(t *testing.T) {
		t.Parallel()
		s := Summarize(&Spectrum{Wavelength: make([]float64, 1024), Flux: make([]float64, 1024), Extension: 1})
		assert.Equal(t, DataTypeSpectrum, s.Kind)
		assert.Equal(t, 1024, s.Points)
		assert.Equal(t, []int{1024}, s.Shape)
	})

	t.Run("image", func(t *testing.T) {
		t.Parallel()
		s := Summarize(&Image{
			Samples:        mat.NewDense(3, 4, nil),
			ExtensionIndex: 1,
			ExtensionName:  "SCI",
			Reduced:        true,
			SourceShape:    []int{2, 3, 4},
		})
		assert.Equal(t, DataTypeImage, s.Kind)
		assert.Equal(t, []int{3, 4}, s.Shape)
		assert.Equal(t, []int{2, 3, 4}, s.SourceShape)
		assert.True(t, s.Reduced)
		assert.Equal(t, "SCI", s.ExtensionName)
	})

	t.Run("timeseries", func(t *testing.T) {
		t.Parallel()
		s := Summarize(&TimeSeries{PrimaryShape: nil})
		assert.Equal(t, DataTypeTimeSeries, s.Kind)
		assert.Nil(t, s.Shape)
	})

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, Summarize(nil))
	})
}

func TestImageMetrics_NonFiniteJSON(t *testing.T) {
	t.Parallel()

	m := ImageMetrics{Mean: math.NaN(), StdDev: math.NaN(), Max: math.Inf(1), VMin: 1, VMax: 2}
	b, err := json.Marshal(RunResult{Metrics: &m})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"metrics":{"mean":null,"std_dev":null,"max":null,"vmin":1,"vmax":2}`)

	var back RunResult
	require.NoError(t, json.Unmarshal(b, &back))
	require.NotNil(t, back.Metrics)
	assert.True(t, math.IsNaN(back.Metrics.Mean))
	assert.True(t, math.IsNaN(back.Metrics.Max))
	assert.Equal(t, 2.0, back.Metrics.VMax)
}

package render

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/hubble-cli/internal/model"
)

// Metric is one labelled display statistic.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// MetricLabels are the statistic labels in display order.
var MetricLabels = []string{"Mean", "Std Dev", "Max"}

// FormatMetrics renders mean, population standard deviation and maximum to
// two decimals.
func FormatMetrics(m model.ImageMetrics) []Metric {
	return []Metric{
		{Label: MetricLabels[0], Value: fmt.Sprintf("%.2f", m.Mean)},
		{Label: MetricLabels[1], Value: fmt.Sprintf("%.2f", m.StdDev)},
		{Label: MetricLabels[2], Value: fmt.Sprintf("%.2f", m.Max)},
	}
}

// Statistics computes mean, population standard deviation and maximum over
// every sample of m. A NaN sample makes all three NaN, as the display
// metrics describe the full array rather than its finite subset.
func Statistics(m mat.Matrix) model.ImageMetrics {
	values := flatten(m)
	if len(values) == 0 || floats.HasNaN(values) {
		nan := math.NaN()
		return model.ImageMetrics{Mean: nan, StdDev: nan, Max: nan}
	}
	return model.ImageMetrics{
		Mean:   stat.Mean(values, nil),
		StdDev: stat.PopStdDev(values, nil),
		Max:    floats.Max(values),
	}
}

// flatten copies m into a row-major slice.
func flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := range r {
		for j := range c {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

package render

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ZScale holds the parameters of the IRAF z-scale display interval.
type ZScale struct {
	NSamples      int     `mapstructure:"nsamples"`
	Contrast      float64 `mapstructure:"contrast"`
	MaxReject     float64 `mapstructure:"max_reject"`
	MinNPixels    int     `mapstructure:"min_npixels"`
	KRej          float64 `mapstructure:"krej"`
	MaxIterations int     `mapstructure:"max_iterations"`
}

// DefaultZScale returns the standard z-scale parameters.
func DefaultZScale() ZScale {
	return ZScale{
		NSamples:      1000,
		Contrast:      0.25,
		MaxReject:     0.5,
		MinNPixels:    5,
		KRej:          2.5,
		MaxIterations: 5,
	}
}

// Limits computes display limits for values. Non-finite values are ignored.
// The result always satisfies vmin <= vmax; a constant input yields
// vmin == vmax, and an input with no finite values yields (0, 0).
func (z ZScale) Limits(values []float64) (vmin, vmax float64) {
	samples := z.sample(values)
	npix := len(samples)
	if npix == 0 {
		return 0, 0
	}
	sort.Float64s(samples)
	vmin, vmax = samples[0], samples[npix-1]

	minpix := max(z.MinNPixels, int(float64(npix)*z.MaxReject))
	ngrow := max(1, int(float64(npix)*0.01))

	x := make([]float64, npix)
	for i := range x {
		x[i] = float64(i)
	}
	weights := make([]float64, npix)
	bad := make([]bool, npix)
	flat := make([]float64, npix)
	good := make([]float64, 0, npix)

	ngood := npix
	lastNGood := npix + 1
	var slope float64
	for range z.MaxIterations {
		if ngood >= lastNGood || ngood < minpix {
			break
		}

		for i, b := range bad {
			weights[i] = 1
			if b {
				weights[i] = 0
			}
		}
		var intercept float64
		intercept, slope = stat.LinearRegression(x, samples, weights, false)

		good = good[:0]
		for i := range samples {
			flat[i] = samples[i] - (intercept + slope*x[i])
			if !bad[i] {
				good = append(good, flat[i])
			}
		}
		threshold := z.KRej * stat.PopStdDev(good, nil)
		for i, f := range flat {
			if f < -threshold || f > threshold {
				bad[i] = true
			}
		}
		bad = dilate(bad, ngrow)

		lastNGood = ngood
		ngood = 0
		for _, b := range bad {
			if !b {
				ngood++
			}
		}
	}

	if ngood >= minpix {
		if z.Contrast > 0 {
			slope /= z.Contrast
		}
		center := (npix - 1) / 2
		median := samples[npix/2]
		if npix%2 == 0 {
			median = (samples[npix/2-1] + samples[npix/2]) / 2
		}
		vmin = math.Max(vmin, median-float64(center-1)*slope)
		vmax = math.Min(vmax, median+float64(npix-center)*slope)
	}

	if vmin > vmax {
		vmin, vmax = samples[0], samples[npix-1]
	}
	return vmin, vmax
}

// sample returns up to NSamples finite values taken at a regular stride.
func (z ZScale) sample(values []float64) []float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil
	}
	n := z.NSamples
	if n <= 0 {
		n = DefaultZScale().NSamples
	}
	stride := int(math.Max(1, float64(len(finite))/float64(n)))
	out := make([]float64, 0, n)
	for i := 0; i < len(finite) && len(out) < n; i += stride {
		out = append(out, finite[i])
	}
	return out
}

// dilate marks every pixel within reach of a bad pixel, matching a
// same-mode convolution with a box kernel of width n: a bad pixel at k marks
// [k-(n-1)/2, k+n-1-(n-1)/2].
func dilate(bad []bool, n int) []bool {
	if n <= 1 {
		return bad
	}
	h := (n - 1) / 2
	out := make([]bool, len(bad))
	for k, b := range bad {
		if !b {
			continue
		}
		for i := max(0, k-h); i <= min(len(bad)-1, k+n-1-h); i++ {
			out[i] = true
		}
	}
	return out
}

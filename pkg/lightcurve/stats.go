package lightcurve

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// finite returns the non-NaN values of x
func finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// nanMedian is the median ignoring NaN; the mean of the two middle values
// for even counts. NaN when nothing is left.
func nanMedian(x []float64) float64 {
	v := finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	mid := len(v) / 2
	if len(v)%2 == 1 {
		return v[mid]
	}
	return (v[mid-1] + v[mid]) / 2
}

func nanMean(x []float64) float64 {
	v := finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// nanStd is the population standard deviation ignoring NaN
func nanStd(x []float64) float64 {
	v := finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	_, variance := stat.PopMeanVariance(v, nil)
	return math.Sqrt(variance)
}

func nanMin(x []float64) float64 {
	v := finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Min(v)
}

// diff returns consecutive differences x[i+1]-x[i]
func diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// linearInterp returns the piecewise-linear interpolant of fp over
// increasing xp, clamped to the end values outside the range. Repeated xp
// keep their first value.
func linearInterp(xp, fp []float64) func(float64) float64 {
	xs := make([]float64, 0, len(xp))
	ys := make([]float64, 0, len(fp))
	for i, x := range xp {
		if len(xs) > 0 && x <= xs[len(xs)-1] {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, fp[i])
	}
	switch len(xs) {
	case 0:
		return func(float64) float64 { return math.NaN() }
	case 1:
		v := ys[0]
		return func(float64) float64 { return v }
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return func(float64) float64 { return math.NaN() }
	}
	return pl.Predict
}

// isClose mirrors the usual relative+absolute float tolerance test
func isClose(a, b float64) bool {
	const rtol, atol = 1e-5, 1e-8
	return math.Abs(a-b) <= atol+rtol*math.Abs(b)
}

// linspace returns n >= 2 evenly spaced values over [start, stop]
func linspace(start, stop float64, n int) []float64 {
	return floats.Span(make([]float64, n), start, stop)
}

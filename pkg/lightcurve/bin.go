package lightcurve

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/vjranagit/lkext/pkg/types"
)

type binConfig struct {
	width *float64
	xMin  *float64
	xMax  *float64
}

// BinOption configures FastBin
type BinOption func(*binConfig)

// WithBinWidth sets the bin width; defaults to (xMax-xMin)/numBins
func WithBinWidth(w float64) BinOption {
	return func(c *binConfig) { c.width = &w }
}

// WithXMin sets the inclusive left edge; defaults to the first time
func WithXMin(x float64) BinOption {
	return func(c *binConfig) { c.xMin = &x }
}

// WithXMax sets the exclusive right edge; defaults to the last time
func WithXMax(x float64) BinOption {
	return func(c *binConfig) { c.xMax = &x }
}

// FastBin resamples lc onto exactly numBins points using the median flux of
// each bin. Bin i covers [xMin+i*s, xMin+i*s+width) where
// s = (xMax-xMin-width)/(numBins-1). Bins without samples are NaN. Samples
// are binned in time order whatever the order of lc. The flux error of the
// result is NaN.
func FastBin(lc *LightCurve, numBins int, opts ...BinOption) (*LightCurve, error) {
	x, y := lc.Time, lc.Flux

	if numBins < 2 {
		return nil, types.NewValueError("num_bins", strconv.Itoa(numBins), "must be at least 2")
	}
	n := len(x)
	if n < 2 {
		return nil, types.NewValueError("time", strconv.Itoa(n), "length must be at least 2")
	}
	if n != len(y) {
		return nil, types.NewValueError("flux", strconv.Itoa(len(y)),
			fmt.Sprintf("length must equal the time length %d", n))
	}

	if !slices.IsSorted(x) {
		x, y = sortedByTime(x, y)
	}

	cfg := binConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	xMin, xMax := x[0], x[n-1]
	if cfg.xMin != nil {
		xMin = *cfg.xMin
	}
	if cfg.xMax != nil {
		xMax = *cfg.xMax
	}
	if !(xMin < xMax) {
		return nil, types.NewValueError("x_min", formatFloat(xMin),
			fmt.Sprintf("must be less than x_max %s", formatFloat(xMax)))
	}
	if xMin > x[n-1] {
		return nil, types.NewValueError("x_min", formatFloat(xMin),
			fmt.Sprintf("must not exceed the largest time %s", formatFloat(x[n-1])))
	}

	width := (xMax - xMin) / float64(numBins)
	if cfg.width != nil {
		width = *cfg.width
	}
	if !(width > 0) {
		return nil, types.NewValueError("bin_width", formatFloat(width), "must be positive")
	}
	if width >= xMax-xMin {
		return nil, types.NewValueError("bin_width", formatFloat(width),
			fmt.Sprintf("must be less than x_max - x_min %s", formatFloat(xMax-xMin)))
	}

	spacing := (xMax - xMin - width) / float64(numBins-1)
	result := nanSlice(numBins)

	// two cursors sweep x once; x[start:end] is the current bin
	start, end := 0, 0
	binMin, binMax := xMin, xMin+width
	for i := range numBins {
		for start < n && x[start] < binMin {
			start++
		}
		for end < n && x[end] < binMax {
			end++
		}
		if end > start {
			result[i] = nanMedian(y[start:end])
		}
		binMin += spacing
		binMax += spacing
	}

	return &LightCurve{
		Time:    linspace(xMin+spacing/2, xMax-spacing/2, numBins),
		Flux:    result,
		FluxErr: nanSlice(numBins),
		Meta:    maps.Clone(lc.Meta),
	}, nil
}

// sortedByTime returns copies of x and y ordered by x
func sortedByTime(x, y []float64) ([]float64, []float64) {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(x[a], x[b]) })
	xs := make([]float64, len(x))
	ys := make([]float64, len(y))
	for i, j := range idx {
		xs[i], ys[i] = x[j], y[j]
	}
	return xs, ys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

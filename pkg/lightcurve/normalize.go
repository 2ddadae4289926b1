package lightcurve

import (
	"math"

	"github.com/vjranagit/lkext/pkg/types"
)

// NormalizeMedian centers flux at 0 in units of the absolute median flux.
// Using the absolute median keeps the sign of variations when the baseline
// is negative. It is the default stitching corrector.
func NormalizeMedian(lc *LightCurve) (*LightCurve, error) {
	median := nanMedian(lc.Flux)
	if math.IsNaN(median) {
		return nil, types.NewValueError("flux", "", "no finite flux values to normalize")
	}
	if median == 0 {
		return nil, types.NewValueError("flux", "0", "median flux is zero")
	}

	out := lc.Copy()
	scale := math.Abs(median)
	for i := range out.Flux {
		out.Flux[i] = (out.Flux[i] - median) / scale
		out.FluxErr[i] /= scale
	}
	out.setNormalized()
	return out, nil
}

// AstronetNormalize maps the minimum flux to -1 and the median to 0, scaling
// the errors by the same factor.
func AstronetNormalize(lc *LightCurve) (*LightCurve, error) {
	median := nanMedian(lc.Flux)
	low := nanMin(lc.Flux)
	scale := median - low
	if math.IsNaN(scale) || scale == 0 {
		return nil, types.NewValueError("flux", "", "median and minimum flux coincide")
	}

	out := lc.Copy()
	for i := range out.Flux {
		out.Flux[i] = (out.Flux[i]-low)/scale - 1
		out.FluxErr[i] /= scale
	}
	out.setNormalized()
	return out, nil
}

func (lc *LightCurve) setNormalized() {
	if lc.Meta == nil {
		lc.Meta = Meta{}
	}
	lc.Meta[MetaNormalized] = true
}

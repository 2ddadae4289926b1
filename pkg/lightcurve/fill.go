package lightcurve

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/vjranagit/lkext/pkg/types"
)

// Gap filling methods
const (
	FillGaussianNoise = "gaussian_noise"
	FillNaN           = "nan"
	FillZero          = "zero"
)

// QualityFilled is OR-ed into the quality of synthesized samples
const QualityFilled int32 = 65536

// approxGapFactor is the multiple of the median cadence above which a
// spacing counts as a gap when no cadence numbers are available.
const approxGapFactor = 1.2

type fillConfig struct {
	rng *rand.Rand
}

// FillOption configures FillGaps
type FillOption func(*fillConfig)

// WithRand sets the random source used by the gaussian_noise method
func WithRand(r *rand.Rand) FillOption {
	return func(c *fillConfig) {
		c.rng = r
	}
}

// FillGaps returns a copy of lc without NaN flux in which missing samples
// have been synthesized. With a cadence-number column the missing cadences
// are reconstructed exactly; otherwise samples are inserted at the median
// cadence wherever spacing exceeds 1.2 cadences. Synthesized flux follows
// method, synthesized flux errors are interpolated from observed ones.
func FillGaps(lc *LightCurve, method string, opts ...FillOption) (*LightCurve, error) {
	fill, err := fillFunc(method)
	if err != nil {
		return nil, err
	}

	cfg := fillConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	clean := lc.RemoveNaNs()
	clean.Sort()
	if clean.Len() < 2 {
		return clean, nil
	}

	cadence := nanMedian(diff(clean.Time))
	var (
		ntime []float64
		ncad  []int64
		src   []int
	)
	if clean.CadenceNo != nil && slices.IsSorted(clean.CadenceNo) {
		ntime, ncad, src = preciseTimes(clean, cadence)
	} else {
		if ntime, src, err = approximateTimes(clean.Time, cadence); err != nil {
			return nil, err
		}
	}

	out := &LightCurve{
		Time:      ntime,
		Flux:      make([]float64, len(ntime)),
		FluxErr:   make([]float64, len(ntime)),
		CadenceNo: ncad,
		Meta:      clean.Meta,
	}
	if clean.Quality != nil {
		out.Quality = make([]int32, len(ntime))
	}

	synth := fill(clean, &cfg)
	errAt := linearInterp(clean.Time, clean.FluxErr)
	for i, t := range ntime {
		if j := src[i]; j >= 0 {
			out.Flux[i] = clean.Flux[j]
			out.FluxErr[i] = clean.FluxErr[j]
			if out.Quality != nil {
				out.Quality[i] = clean.Quality[j]
			}
			continue
		}
		out.Flux[i] = synth()
		out.FluxErr[i] = errAt(t)
		if out.Quality != nil {
			out.Quality[i] |= QualityFilled
		}
	}
	return out, nil
}

// fillFunc resolves method to a generator of synthesized flux values
func fillFunc(method string) (func(*LightCurve, *fillConfig) func() float64, error) {
	switch {
	case method == FillGaussianNoise:
		return gaussianNoise, nil
	case strings.EqualFold(method, FillNaN):
		return func(*LightCurve, *fillConfig) func() float64 {
			return math.NaN
		}, nil
	case method == FillZero:
		return func(*LightCurve, *fillConfig) func() float64 {
			return func() float64 { return 0 }
		}, nil
	default:
		return nil, fmt.Errorf("%w: fill method %q", types.ErrNotImplemented, method)
	}
}

func gaussianNoise(lc *LightCurve, cfg *fillConfig) func() float64 {
	mean := nanMean(lc.Flux)
	amplitude := nanStd(lc.Flux)
	if cdpp, err := EstimateCDPP(lc); err == nil {
		amplitude = cdpp * math.Abs(mean)
	}
	return func() float64 {
		return mean + amplitude*cfg.rng.NormFloat64()
	}
}

// preciseTimes reconstructs every cadence between the first and last
// observed cadence number. The per-cadence offset from a uniform clock is
// interpolated for the missing cadences. src maps each output sample to its
// observed index, -1 when synthesized.
func preciseTimes(lc *LightCurve, cadence float64) (ntime []float64, ncad []int64, src []int) {
	n := lc.Len()
	cads := make([]float64, n)
	offsets := make([]float64, n)
	for i, c := range lc.CadenceNo {
		cads[i] = float64(c)
		offsets[i] = lc.Time[i] - cadence*cads[i]
	}

	offsetAt := linearInterp(cads, offsets)

	first, last := lc.CadenceNo[0], lc.CadenceNo[n-1]
	size := int(last-first) + 1
	ntime = make([]float64, 0, size)
	ncad = make([]int64, 0, size)
	src = make([]int, 0, size)

	j := 0
	for c := first; c <= last; c++ {
		if lc.CadenceNo[j] == c {
			// repeated cadence numbers are all kept
			for j < n && lc.CadenceNo[j] == c {
				ntime = append(ntime, lc.Time[j])
				ncad = append(ncad, c)
				src = append(src, j)
				j++
			}
			continue
		}
		cf := float64(c)
		ntime = append(ntime, offsetAt(cf)+cadence*cf)
		ncad = append(ncad, c)
		src = append(src, -1)
	}
	return ntime, ncad, src
}

// approximateTimes inserts samples at the nominal cadence into every
// spacing wider than approxGapFactor cadences. A cadence too small to
// advance the timestamps is a value error.
func approximateTimes(times []float64, cadence float64) ([]float64, []int, error) {
	ntime := []float64{times[0]}
	src := []int{0}
	for i, t := range times[1:] {
		prev := ntime[len(ntime)-1]
		if cadence > 0 {
			for t-prev > approxGapFactor*cadence {
				next := prev + cadence
				if next <= prev {
					return nil, nil, types.NewValueError("cadence", formatFloat(cadence),
						fmt.Sprintf("does not advance time %s", formatFloat(prev)))
				}
				prev = next
				ntime = append(ntime, prev)
				src = append(src, -1)
			}
		}
		ntime = append(ntime, t)
		src = append(src, i+1)
	}
	return ntime, src, nil
}

package lightcurve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	cdppTrendWindow   = 101
	cdppTransitWindow = 13
	cdppSigma         = 5.0
)

// EstimateCDPP estimates the combined differential photometric precision as
// a fraction of the flux level: flux is detrended by a running median,
// outliers beyond 5 sigma are clipped, and the standard deviation of a
// 13-sample running mean is returned.
func EstimateCDPP(lc *LightCurve) (float64, error) {
	flux := finite(lc.Flux)
	if len(flux) < 2*cdppTransitWindow {
		return 0, fmt.Errorf("need at least %d finite samples to estimate cdpp, got %d",
			2*cdppTransitWindow, len(flux))
	}

	window := min(cdppTrendWindow, len(flux))
	if window%2 == 0 {
		window--
	}
	trend := runningMedian(flux, window)

	detrended := make([]float64, 0, len(flux))
	for i, f := range flux {
		if trend[i] == 0 {
			continue
		}
		detrended = append(detrended, f/trend[i])
	}

	clipped := sigmaClip(detrended, cdppSigma)
	if len(clipped) < cdppTransitWindow {
		return 0, fmt.Errorf("only %d samples left after sigma clipping", len(clipped))
	}

	smoothed := runningMean(clipped, cdppTransitWindow)
	_, variance := stat.PopMeanVariance(smoothed, nil)
	cdpp := math.Sqrt(variance)
	if math.IsNaN(cdpp) {
		return 0, fmt.Errorf("cdpp is undefined")
	}
	return cdpp, nil
}

// runningMedian uses an odd window, shrinking it at the edges
func runningMedian(x []float64, window int) []float64 {
	half := window / 2
	out := make([]float64, len(x))
	for i := range x {
		lo := max(0, i-half)
		hi := min(len(x), i+half+1)
		out[i] = nanMedian(x[lo:hi])
	}
	return out
}

// runningMean returns the means of every full window
func runningMean(x []float64, window int) []float64 {
	if len(x) < window {
		return nil
	}
	out := make([]float64, 0, len(x)-window+1)
	sum := 0.0
	for i, v := range x {
		sum += v
		if i >= window {
			sum -= x[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// sigmaClip drops values further than sigma standard deviations from the
// median, repeating until nothing more is removed.
func sigmaClip(x []float64, sigma float64) []float64 {
	cur := x
	for {
		median := nanMedian(cur)
		std := nanStd(cur)
		next := make([]float64, 0, len(cur))
		for _, v := range cur {
			if math.Abs(v-median) <= sigma*std {
				next = append(next, v)
			}
		}
		if len(next) == len(cur) || len(next) == 0 {
			return next
		}
		cur = next
	}
}

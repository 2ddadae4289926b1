package lightcurve

import "iter"

// SplitByGap yields contiguous segments of a time-sorted copy of lc, cutting
// wherever consecutive samples are more than threshold apart. Each call
// produces a fresh sequence; an empty light curve yields nothing.
func SplitByGap(lc *LightCurve, threshold float64) iter.Seq[*LightCurve] {
	return func(yield func(*LightCurve) bool) {
		sorted := lc.Copy()
		sorted.Sort()

		n := sorted.Len()
		if n == 0 {
			return
		}

		start := 0
		for i := 1; i < n; i++ {
			if sorted.Time[i]-sorted.Time[i-1] <= threshold {
				continue
			}
			if !yield(sorted.Slice(start, i)) {
				return
			}
			start = i
		}
		yield(sorted.Slice(start, n))
	}
}

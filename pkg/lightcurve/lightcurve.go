// Package lightcurve holds the time-series container and the algorithms
// that operate on it: gap splitting and filling, fixed-count binning,
// normalization, stitching and author disambiguation.
package lightcurve

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
)

// Metadata keys
const (
	MetaAuthor     = "AUTHOR"
	MetaTimeDel    = "TIMEDEL"
	MetaFilename   = "FILENAME"
	MetaTStart     = "TSTART"
	MetaSector     = "SECTOR"
	MetaNormalized = "NORMALIZED"
)

// Column names accepted by Column
const (
	ColTime      = "time"
	ColFlux      = "flux"
	ColFluxErr   = "flux_err"
	ColQuality   = "quality"
	ColCadenceNo = "cadenceno"
)

// Meta is the key-value metadata of a light curve
type Meta map[string]any

// Series is the capability set the algorithms rely on
type Series interface {
	sort.Interface
	Column(name string) ([]float64, bool)
	Metadata() Meta
}

// LightCurve is an ordered set of samples with flux, flux error and
// optional quality and cadence-number columns.
type LightCurve struct {
	Time    []float64
	Flux    []float64
	FluxErr []float64
	// Quality is nil when the source has no quality column
	Quality []int32
	// CadenceNo is nil when the source has no cadence-number column
	CadenceNo []int64
	Meta      Meta
}

var _ Series = (*LightCurve)(nil)

// New creates a light curve; fluxErr may be nil and is then filled with NaN
func New(time, flux, fluxErr []float64, meta Meta) (*LightCurve, error) {
	if fluxErr == nil {
		fluxErr = nanSlice(len(time))
	}
	if meta == nil {
		meta = Meta{}
	}
	lc := &LightCurve{Time: time, Flux: flux, FluxErr: fluxErr, Meta: meta}
	if err := lc.Validate(); err != nil {
		return nil, err
	}
	return lc, nil
}

// Validate checks that every present column has the same length
func (lc *LightCurve) Validate() error {
	n := len(lc.Time)
	if len(lc.Flux) != n {
		return fmt.Errorf("flux column has %d samples, time has %d", len(lc.Flux), n)
	}
	if len(lc.FluxErr) != n {
		return fmt.Errorf("flux_err column has %d samples, time has %d", len(lc.FluxErr), n)
	}
	if lc.Quality != nil && len(lc.Quality) != n {
		return fmt.Errorf("quality column has %d samples, time has %d", len(lc.Quality), n)
	}
	if lc.CadenceNo != nil && len(lc.CadenceNo) != n {
		return fmt.Errorf("cadenceno column has %d samples, time has %d", len(lc.CadenceNo), n)
	}
	return nil
}

// Len implements sort.Interface
func (lc *LightCurve) Len() int { return len(lc.Time) }

// Less implements sort.Interface, ordering by time
func (lc *LightCurve) Less(i, j int) bool { return lc.Time[i] < lc.Time[j] }

// Swap implements sort.Interface, swapping every column
func (lc *LightCurve) Swap(i, j int) {
	lc.Time[i], lc.Time[j] = lc.Time[j], lc.Time[i]
	lc.Flux[i], lc.Flux[j] = lc.Flux[j], lc.Flux[i]
	lc.FluxErr[i], lc.FluxErr[j] = lc.FluxErr[j], lc.FluxErr[i]
	if lc.Quality != nil {
		lc.Quality[i], lc.Quality[j] = lc.Quality[j], lc.Quality[i]
	}
	if lc.CadenceNo != nil {
		lc.CadenceNo[i], lc.CadenceNo[j] = lc.CadenceNo[j], lc.CadenceNo[i]
	}
}

// Sort orders the samples by time in place, keeping equal times stable
func (lc *LightCurve) Sort() {
	sort.Stable(lc)
}

// Copy returns a deep copy
func (lc *LightCurve) Copy() *LightCurve {
	return &LightCurve{
		Time:      slices.Clone(lc.Time),
		Flux:      slices.Clone(lc.Flux),
		FluxErr:   slices.Clone(lc.FluxErr),
		Quality:   slices.Clone(lc.Quality),
		CadenceNo: slices.Clone(lc.CadenceNo),
		Meta:      maps.Clone(lc.Meta),
	}
}

// Slice returns a copy of samples [i, j)
func (lc *LightCurve) Slice(i, j int) *LightCurve {
	out := &LightCurve{
		Time:    slices.Clone(lc.Time[i:j]),
		Flux:    slices.Clone(lc.Flux[i:j]),
		FluxErr: slices.Clone(lc.FluxErr[i:j]),
		Meta:    maps.Clone(lc.Meta),
	}
	if lc.Quality != nil {
		out.Quality = slices.Clone(lc.Quality[i:j])
	}
	if lc.CadenceNo != nil {
		out.CadenceNo = slices.Clone(lc.CadenceNo[i:j])
	}
	return out
}

// Column returns a column as float64 values
func (lc *LightCurve) Column(name string) ([]float64, bool) {
	switch name {
	case ColTime:
		return lc.Time, true
	case ColFlux:
		return lc.Flux, true
	case ColFluxErr:
		return lc.FluxErr, true
	case ColQuality:
		if lc.Quality == nil {
			return nil, false
		}
		out := make([]float64, len(lc.Quality))
		for i, q := range lc.Quality {
			out[i] = float64(q)
		}
		return out, true
	case ColCadenceNo:
		if lc.CadenceNo == nil {
			return nil, false
		}
		out := make([]float64, len(lc.CadenceNo))
		for i, c := range lc.CadenceNo {
			out[i] = float64(c)
		}
		return out, true
	}
	return nil, false
}

// Metadata returns the metadata map
func (lc *LightCurve) Metadata() Meta { return lc.Meta }

// Author returns the AUTHOR metadata or ""
func (lc *LightCurve) Author() string {
	s, _ := lc.Meta[MetaAuthor].(string)
	return s
}

// Filename returns the FILENAME metadata or ""
func (lc *LightCurve) Filename() string {
	s, _ := lc.Meta[MetaFilename].(string)
	return s
}

// TimeDel returns the nominal sample spacing in days
func (lc *LightCurve) TimeDel() (float64, bool) {
	return metaFloat(lc.Meta, MetaTimeDel)
}

// Sector returns the SECTOR metadata
func (lc *LightCurve) Sector() (int, bool) {
	v, ok := metaFloat(lc.Meta, MetaSector)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// TStart returns TSTART, falling back to the earliest timestamp
func (lc *LightCurve) TStart() float64 {
	if v, ok := metaFloat(lc.Meta, MetaTStart); ok {
		return v
	}
	if len(lc.Time) == 0 {
		return math.Inf(1)
	}
	return slices.Min(lc.Time)
}

// RemoveNaNs returns a copy without samples whose time or flux is NaN
func (lc *LightCurve) RemoveNaNs() *LightCurve {
	keep := make([]int, 0, lc.Len())
	for i := range lc.Time {
		if math.IsNaN(lc.Time[i]) || math.IsNaN(lc.Flux[i]) {
			continue
		}
		keep = append(keep, i)
	}
	return lc.take(keep)
}

func (lc *LightCurve) take(idx []int) *LightCurve {
	out := &LightCurve{
		Time:    make([]float64, len(idx)),
		Flux:    make([]float64, len(idx)),
		FluxErr: make([]float64, len(idx)),
		Meta:    maps.Clone(lc.Meta),
	}
	if lc.Quality != nil {
		out.Quality = make([]int32, len(idx))
	}
	if lc.CadenceNo != nil {
		out.CadenceNo = make([]int64, len(idx))
	}
	for k, i := range idx {
		out.Time[k] = lc.Time[i]
		out.Flux[k] = lc.Flux[i]
		out.FluxErr[k] = lc.FluxErr[i]
		if out.Quality != nil {
			out.Quality[k] = lc.Quality[i]
		}
		if out.CadenceNo != nil {
			out.CadenceNo[k] = lc.CadenceNo[i]
		}
	}
	return out
}

func metaFloat(m Meta, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

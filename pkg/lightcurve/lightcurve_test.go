package lightcurve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniform returns n samples spaced by step starting at t0, flux 100+i
func uniform(t *testing.T, n int, t0, step float64) *LightCurve {
	t.Helper()
	time := make([]float64, n)
	flux := make([]float64, n)
	fluxErr := make([]float64, n)
	for i := range n {
		time[i] = t0 + float64(i)*step
		flux[i] = 100 + float64(i)
		fluxErr[i] = 1
	}
	lc, err := New(time, flux, fluxErr, Meta{MetaFilename: "test.fits"})
	require.NoError(t, err)
	return lc
}

func TestNewFillsMissingErrors(t *testing.T) {
	lc, err := New([]float64{1, 2}, []float64{3, 4}, nil, nil)
	require.NoError(t, err)
	require.Len(t, lc.FluxErr, 2)
	assert.True(t, math.IsNaN(lc.FluxErr[0]))
	assert.NotNil(t, lc.Meta)
}

func TestNewRejectsMismatchedColumns(t *testing.T) {
	_, err := New([]float64{1, 2}, []float64{3}, nil, nil)
	assert.Error(t, err)
}

func TestSortMovesEveryColumn(t *testing.T) {
	lc := &LightCurve{
		Time:      []float64{3, 1, 2},
		Flux:      []float64{30, 10, 20},
		FluxErr:   []float64{0.3, 0.1, 0.2},
		Quality:   []int32{3, 1, 2},
		CadenceNo: []int64{103, 101, 102},
		Meta:      Meta{},
	}
	lc.Sort()

	assert.Equal(t, []float64{1, 2, 3}, lc.Time)
	assert.Equal(t, []float64{10, 20, 30}, lc.Flux)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, lc.FluxErr)
	assert.Equal(t, []int32{1, 2, 3}, lc.Quality)
	assert.Equal(t, []int64{101, 102, 103}, lc.CadenceNo)
}

func TestCopyIsDeep(t *testing.T) {
	lc := uniform(t, 3, 0, 1)
	cp := lc.Copy()
	cp.Flux[0] = -1
	cp.Meta[MetaAuthor] = "QLP"

	assert.Equal(t, 100.0, lc.Flux[0])
	assert.Empty(t, lc.Author())
}

func TestRemoveNaNs(t *testing.T) {
	lc, err := New(
		[]float64{1, 2, math.NaN(), 4},
		[]float64{1, math.NaN(), 3, 4},
		nil, nil)
	require.NoError(t, err)

	clean := lc.RemoveNaNs()
	assert.Equal(t, []float64{1, 4}, clean.Time)
	assert.Equal(t, []float64{1, 4}, clean.Flux)
}

func TestTStartFallsBackToEarliestTime(t *testing.T) {
	lc := uniform(t, 4, 10, 1)
	assert.Equal(t, 10.0, lc.TStart())

	lc.Meta[MetaTStart] = 5.0
	assert.Equal(t, 5.0, lc.TStart())

	empty := &LightCurve{}
	assert.True(t, math.IsInf(empty.TStart(), 1))
}

func TestColumn(t *testing.T) {
	lc := uniform(t, 2, 0, 1)
	_, ok := lc.Column(ColQuality)
	assert.False(t, ok)

	lc.Quality = []int32{0, 4}
	q, ok := lc.Column(ColQuality)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 4}, q)

	_, ok = lc.Column("sap_flux")
	assert.False(t, ok)
}

func TestMetadataAccessors(t *testing.T) {
	lc := uniform(t, 2, 0, 1)
	lc.Meta[MetaSector] = int64(14)
	lc.Meta[MetaTimeDel] = float32(0.5)

	sector, ok := lc.Sector()
	require.True(t, ok)
	assert.Equal(t, 14, sector)

	td, ok := lc.TimeDel()
	require.True(t, ok)
	assert.Equal(t, 0.5, td)
}

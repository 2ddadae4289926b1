package lightcurve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/lkext/pkg/naming"
	"github.com/vjranagit/lkext/pkg/types"
)

const (
	twoMinutes    = 2.0 / 60 / 24
	tenMinutes    = 10.0 / 60 / 24
	thirtyMinutes = 30.0 / 60 / 24
	twentySeconds = 20.0 / 3600 / 24
	twoHundredSec = 200.0 / 3600 / 24
)

func product(t *testing.T, author string, sector int, timedel, tstart float64) *LightCurve {
	t.Helper()
	lc := uniform(t, 5, tstart, timedel)
	lc.Meta[MetaAuthor] = author
	lc.Meta[MetaSector] = sector
	lc.Meta[MetaTimeDel] = timedel
	lc.Meta[MetaTStart] = tstart
	return lc
}

func TestReviseAuthor(t *testing.T) {
	tests := []struct {
		name    string
		author  string
		timedel float64
		want    string
	}{
		{"spoc 2min", naming.AuthorSPOC, twoMinutes, naming.AuthorSPOC},
		{"spoc 20s", naming.AuthorSPOC, twentySeconds, naming.AuthorSPOC},
		{"ffi 30min", naming.AuthorSPOC, thirtyMinutes, naming.AuthorTESSSPOC},
		{"ffi 10min", naming.AuthorSPOC, tenMinutes, naming.AuthorTESSSPOC},
		{"ffi 200s", naming.AuthorSPOC, twoHundredSec, naming.AuthorTESSSPOC},
		{"other author untouched", naming.AuthorQLP, 1.0, naming.AuthorQLP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := product(t, tt.author, 1, tt.timedel, 0)
			revised, err := ReviseAuthor(lc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, revised.Author())
			assert.Equal(t, tt.author, lc.Author(), "input must not change")
		})
	}
}

func TestReviseAuthorRejectsUnknownCadence(t *testing.T) {
	lc := product(t, naming.AuthorSPOC, 1, 7.0/60/24, 0)
	_, err := ReviseAuthor(lc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInconsistentCadence))

	var cerr *types.CadenceError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "test.fits", cerr.File)
}

func TestReviseAuthorNeedsTimeDel(t *testing.T) {
	lc := uniform(t, 3, 0, 1)
	lc.Meta[MetaAuthor] = naming.AuthorSPOC
	_, err := ReviseAuthor(lc)
	assert.ErrorIs(t, err, types.ErrInconsistentCadence)
}

func TestNewCollectionOrdersByTStart(t *testing.T) {
	c := NewCollection([]*LightCurve{
		product(t, naming.AuthorSPOC, 3, twoMinutes, 30),
		product(t, naming.AuthorSPOC, 1, twoMinutes, 10),
		product(t, naming.AuthorSPOC, 2, twoMinutes, 20),
	})
	assert.Equal(t, []int{1, 2, 3}, c.Sectors())
}

func TestSelectByAuthorPriority(t *testing.T) {
	c := NewCollection([]*LightCurve{
		product(t, naming.AuthorSPOC, 5, thirtyMinutes, 50),
		product(t, naming.AuthorTESSSPOC, 5, thirtyMinutes, 50),
		product(t, naming.AuthorSPOC, 2, twoMinutes, 20),
		product(t, naming.AuthorQLP, 9, tenMinutes, 90),
	})

	selected, err := c.SelectByAuthorPriority([]string{naming.AuthorTESSSPOC, naming.AuthorSPOC})
	require.NoError(t, err)
	require.Len(t, selected, 3, "one product per distinct sector")
	assert.Equal(t, []int{2, 5, 9}, selected.Sectors())
	assert.Equal(t, naming.AuthorTESSSPOC, selected[1].Author())
	// singletons are not revised or filtered by priority
	assert.Equal(t, naming.AuthorQLP, selected[2].Author())
}

func TestSelectByAuthorPriorityPrefersListOrder(t *testing.T) {
	c := NewCollection([]*LightCurve{
		product(t, naming.AuthorQLP, 7, tenMinutes, 70),
		product(t, naming.AuthorSPOC, 7, twoMinutes, 70),
	})

	selected, err := c.SelectByAuthorPriority(nil)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, naming.AuthorSPOC, selected[0].Author())

	selected, err = c.SelectByAuthorPriority([]string{naming.AuthorQLP})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, naming.AuthorQLP, selected[0].Author())
}

func TestSelectByAuthorPriorityDropsUnmatchedSector(t *testing.T) {
	c := NewCollection([]*LightCurve{
		product(t, naming.AuthorQLP, 7, tenMinutes, 70),
		product(t, naming.AuthorTASOC, 7, tenMinutes, 70),
		product(t, naming.AuthorSPOC, 8, twoMinutes, 80),
	})

	selected, err := c.SelectByAuthorPriority([]string{naming.AuthorSPOC})
	require.NoError(t, err)
	assert.Equal(t, []int{8}, selected.Sectors())
}

func TestSelectByAuthorPriorityEmpty(t *testing.T) {
	_, err := Collection{}.SelectByAuthorPriority(nil)
	assert.ErrorIs(t, err, types.ErrInvalidValue)
}

func TestStitch(t *testing.T) {
	a := product(t, naming.AuthorSPOC, 2, 1, 10)
	b := product(t, naming.AuthorSPOC, 1, 1, 0)

	lc, err := NewCollection([]*LightCurve{a, b}).Stitch(nil)
	require.NoError(t, err)
	require.Equal(t, 10, lc.Len())

	for i := 1; i < lc.Len(); i++ {
		assert.LessOrEqual(t, lc.Time[i-1], lc.Time[i])
	}
	assert.Equal(t, true, lc.Meta[MetaNormalized])
	// each part is centered on its own median
	assert.InDelta(t, 0, lc.Flux[2], 1e-12)
	assert.InDelta(t, 0, lc.Flux[7], 1e-12)
	assert.Equal(t, 1, lc.Meta[MetaSector], "metadata comes from the first member")
}

func TestStitchCustomCorrector(t *testing.T) {
	c := NewCollection([]*LightCurve{uniform(t, 3, 0, 1), uniform(t, 3, 3, 1)})
	identity := func(lc *LightCurve) (*LightCurve, error) { return lc.Copy(), nil }

	lc, err := c.Stitch(identity)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 102, 100, 101, 102}, lc.Flux)
}

func TestStitchEmpty(t *testing.T) {
	_, err := Collection{}.Stitch(nil)
	assert.ErrorIs(t, err, types.ErrInvalidValue)
}

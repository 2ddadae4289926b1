package naming

import (
	"fmt"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		ticid   int64
		author  string
		sector  int
		expTime int
	}{
		{"spoc 2min", "tess2018206045859-s0001-0000000025155310-0120-s_lc.fits", 25155310, AuthorSPOC, 1, 120},
		{"spoc 20s", "tess2020238165205-s0029-0000000025155310-0193-a_fast-lc.fits", 25155310, AuthorSPOC, 29, 20},
		{"spoc gzip", "tess2018206045859-s0001-0000000025155310-0120-s_lc.fits.gz", 25155310, AuthorSPOC, 1, 120},
		{"tess-spoc prime", "hlsp_tess-spoc_tess_phot_0000000188589164-s0013_tess_v1_lc.fits", 188589164, AuthorTESSSPOC, 13, 1800},
		{"tess-spoc ext", "hlsp_tess-spoc_tess_phot_0000000188589164-s0027_tess_v1_lc.fits", 188589164, AuthorTESSSPOC, 27, 600},
		{"qlp", "hlsp_qlp_tess_ffi_s0055-0000000441801208_tess_v01_llc.fits", 441801208, AuthorQLP, 55, 600},
		{"qlp second ext", "hlsp_qlp_tess_ffi_s0056-0000000441801208_tess_v01_llc.fits", 441801208, AuthorQLP, 56, 200},
		{"tasoc", "hlsp_tasoc_tess_ffi_tic00025155310-s01-c1800_tess_v04_lc.fits", 25155310, AuthorTASOC, 1, 1800},
		{"pathos", "hlsp_pathos_tess_lightcurve_tic-0025155310-s0010_tess_v1_llc.fits", 25155310, AuthorPATHOS, 10, 1800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := Parse(tt.file)
			require.True(t, ok)
			assert.Equal(t, tt.ticid, entry.TICID)
			assert.Equal(t, tt.author, entry.Author)
			assert.Equal(t, tt.sector, entry.Sector)
			assert.Equal(t, tt.expTime, entry.ExpTime)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, name := range []string{
		"",
		"notes.txt",
		"TESS2018206045859-s0001-0000000025155310-0120-s_lc.fits",
		"tess2018206045859-s0001-0000000025155310-0120-s_lc.fits.bak",
		"prefix-tess2018206045859-s0001-0000000025155310-0120-s_lc.fits",
		"hlsp_qlp_tess_ffi_s0055-441801208_tess_v01_llc.fits",
	} {
		_, ok := Parse(name)
		assert.False(t, ok, name)
	}
}

func TestExposureForSector(t *testing.T) {
	cases := map[int]int{1: 1800, 26: 1800, 27: 600, 55: 600, 56: 200, 80: 200}
	for sector, want := range cases {
		assert.Equal(t, want, ExposureForSector(sector), "sector %d", sector)
	}
}

func TestFFIPipelinesShareExposureRule(t *testing.T) {
	for sector := 1; sector < 90; sector++ {
		names := []string{
			"hlsp_tess-spoc_tess_phot_0000000000000007-s" + pad4(sector) + "_tess_v1_lc.fits",
			"hlsp_qlp_tess_ffi_s" + pad4(sector) + "-0000000000000007_tess_v01_llc.fits",
			"hlsp_tasoc_tess_ffi_tic00000000007-s" + pad4(sector) + "-c0120_tess_v04_lc.fits",
		}
		for _, name := range names {
			entry, ok := Parse(name)
			require.True(t, ok, name)
			assert.Equal(t, ExposureForSector(sector), entry.ExpTime, name)
		}
	}
}

func TestGlobMatchesParsedNames(t *testing.T) {
	files := []string{
		"tess2018206045859-s0001-0000000025155310-0120-s_lc.fits",
		"tess2020238165205-s0029-0000000025155310-0193-a_fast-lc.fits",
		"hlsp_tess-spoc_tess_phot_0000000025155310-s0013_tess_v1_lc.fits",
		"hlsp_qlp_tess_ffi_s0055-0000000025155310_tess_v01_llc.fits",
		"hlsp_tasoc_tess_ffi_tic00025155310-s01-c1800_tess_v04_lc.fits",
		"hlsp_pathos_tess_lightcurve_tic-0025155310-s0010_tess_v1_llc.fits",
	}

	for _, file := range files {
		entry, ok := Parse(file)
		require.True(t, ok)

		for _, sector := range []int{entry.Sector, Wildcard} {
			for _, exp := range []int{entry.ExpTime, Wildcard} {
				globs := Glob(entry.TICID, sector, exp, entry.Author)
				require.NotEmpty(t, globs, "%s sector=%d exp=%d", file, sector, exp)
				assert.True(t, matchesAny(globs, file), "%s sector=%d exp=%d globs=%v", file, sector, exp, globs)
			}
		}

		// another object never matches
		assert.False(t, matchesAny(Glob(entry.TICID+1, Wildcard, Wildcard, entry.Author), file))
	}
}

func TestGlobRejectsInconsistentRequests(t *testing.T) {
	assert.Nil(t, Glob(1, 13, 600, AuthorTESSSPOC), "prime mission sector has 30 min cadence")
	assert.Nil(t, Glob(1, Wildcard, 120, AuthorQLP))
	assert.Nil(t, Glob(1, 1, 600, AuthorSPOC))
	assert.Nil(t, Glob(1, 1, Wildcard, AuthorKepler))
	assert.Len(t, Glob(1, 1, Wildcard, AuthorSPOC), 2)
	assert.Len(t, Glob(1, 1, ExpFast, AuthorSPOC), 1)
}

func TestTASOCGlobMatchesEverySectorWidth(t *testing.T) {
	for _, file := range []string{
		"hlsp_tasoc_tess_ffi_tic00000000042-s05-c1800_tess_v04_lc.fits",
		"hlsp_tasoc_tess_ffi_tic00000000042-s005-c1800_tess_v04_lc.fits",
		"hlsp_tasoc_tess_ffi_tic00000000042-s0005-c1800_tess_v04_lc.fits",
	} {
		entry, ok := Parse(file)
		require.True(t, ok, file)
		assert.Equal(t, 5, entry.Sector)
		assert.True(t, matchesAny(Glob(42, 5, Wildcard, AuthorTASOC), file), file)
		assert.False(t, matchesAny(Glob(42, 15, Wildcard, AuthorTASOC), file), file)
	}

	assert.Len(t, Glob(42, 5, Wildcard, AuthorTASOC), 3)
	assert.Equal(t, []string{"hlsp_tasoc_tess_ffi_tic00000000042-s123-c*_tess_v*_lc.fits*",
		"hlsp_tasoc_tess_ffi_tic00000000042-s0123-c*_tess_v*_lc.fits*"}, Glob(42, 123, Wildcard, AuthorTASOC))
}

func TestFastMarkerNotMatchedByShortGlob(t *testing.T) {
	globs := Glob(25155310, 29, ExpShort, AuthorSPOC)
	assert.False(t, matchesAny(globs, "tess2020238165205-s0029-0000000025155310-0193-a_fast-lc.fits"))
}

func matchesAny(globs []string, name string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}

func pad4(n int) string {
	return fmt.Sprintf("%04d", n)
}

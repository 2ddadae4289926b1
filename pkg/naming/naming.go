// Package naming recognises light-curve files by the naming conventions of
// the pipelines that produce them, and builds the reverse glob patterns.
package naming

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/vjranagit/lkext/pkg/types"
)

// Pipeline author labels
const (
	AuthorKepler   = "Kepler"
	AuthorK2       = "K2"
	AuthorSPOC     = "SPOC"
	AuthorTESSSPOC = "TESS-SPOC"
	AuthorQLP      = "QLP"
	AuthorTASOC    = "TASOC"
	AuthorPATHOS   = "PATHOS"
	AuthorCDIPS    = "CDIPS"
	AuthorK2SFF    = "K2SFF"
	AuthorEVEREST  = "EVEREST"
)

// Missions
const (
	MissionKepler = "Kepler"
	MissionK2     = "K2"
	MissionTESS   = "TESS"
)

// Authors is the closed author vocabulary accepted by searches
var Authors = []string{
	AuthorKepler,
	AuthorK2,
	AuthorSPOC,
	AuthorTESSSPOC,
	AuthorQLP,
	AuthorTASOC,
	AuthorPATHOS,
	AuthorCDIPS,
	AuthorK2SFF,
	AuthorEVEREST,
}

// Missions is the closed mission vocabulary
var Missions = []string{MissionKepler, MissionK2, MissionTESS}

// Exposure times in seconds
const (
	ExpFast         = 20
	ExpShort        = 120
	ExpFFIPrime     = 1800
	ExpFFIFirstExt  = 600
	ExpFFISecondExt = 200
)

// FileExtensions are the extensions scanned for light-curve files
var FileExtensions = []string{".fits", ".fits.gz"}

// AuthorMission returns the mission an author publishes for
func AuthorMission(author string) string {
	switch author {
	case AuthorKepler:
		return MissionKepler
	case AuthorK2, AuthorK2SFF, AuthorEVEREST:
		return MissionK2
	default:
		return MissionTESS
	}
}

// ExposureForSector is the full-frame-image cadence of a TESS sector:
// 30 min for the prime mission, 10 min for the first extension, 200 s after.
func ExposureForSector(sector int) int {
	switch {
	case sector < 27:
		return ExpFFIPrime
	case sector < 56:
		return ExpFFIFirstExt
	default:
		return ExpFFISecondExt
	}
}

// HasExtension reports whether name carries a light-curve file extension
func HasExtension(name string) bool {
	for _, ext := range FileExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

type convention struct {
	author string
	re     *regexp.Regexp
	// submatch indexes
	id, sector int
	// fast marks the submatch whose presence selects 20 s cadence; 0 means none
	fast int
	ffi  bool
}

var conventions = []convention{
	{
		author: AuthorSPOC,
		re:     regexp.MustCompile(`^tess\d{13}-s(\d{4})-(\d{16})-\d{4}-[xsab]_(fast-)?lc\.fits(?:\.gz)?$`),
		sector: 1, id: 2, fast: 3,
	},
	{
		author: AuthorTESSSPOC,
		re:     regexp.MustCompile(`^hlsp_tess-spoc_tess_phot_(\d{16})-s(\d{4})_tess_v1_lc\.fits(?:\.gz)?$`),
		id:     1, sector: 2, ffi: true,
	},
	{
		author: AuthorQLP,
		re:     regexp.MustCompile(`^hlsp_qlp_tess_ffi_s(\d{4})-(\d{16})_tess_v01_llc\.fits(?:\.gz)?$`),
		sector: 1, id: 2, ffi: true,
	},
	{
		author: AuthorTASOC,
		re:     regexp.MustCompile(`^hlsp_tasoc_tess_ffi_tic(\d{11})-s(\d{2,4})-c\d{4}_tess_v\d+_lc\.fits(?:\.gz)?$`),
		id:     1, sector: 2, ffi: true,
	},
	{
		author: AuthorPATHOS,
		re:     regexp.MustCompile(`^hlsp_pathos_tess_lightcurve_tic-(\d{10})-s(\d{4})_tess_v1_llc\.fits(?:\.gz)?$`),
		id:     1, sector: 2, ffi: true,
	},
}

// Parse extracts object id, author, sector and exposure time from a bare
// file name. It returns false when no naming convention matches.
func Parse(name string) (types.Entry, bool) {
	for _, c := range conventions {
		m := c.re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(m[c.id], 10, 64)
		if err != nil {
			return types.Entry{}, false
		}
		sector, err := strconv.Atoi(m[c.sector])
		if err != nil {
			return types.Entry{}, false
		}

		entry := types.Entry{TICID: id, Author: c.author, Sector: sector, Path: name}
		switch {
		case c.ffi:
			entry.ExpTime = ExposureForSector(sector)
		case c.fast > 0 && m[c.fast] != "":
			entry.ExpTime = ExpFast
		default:
			entry.ExpTime = ExpShort
		}
		return entry, true
	}
	return types.Entry{}, false
}

// Wildcard stands for an unconstrained sector or exposure time in Glob
const Wildcard = -1

// EncodesExposure reports whether the globs of an author pin the exposure
// time; for the others the exposure is implied by the sector.
func EncodesExposure(author string) bool {
	return author == AuthorSPOC
}

// Glob returns the file-name patterns matching the naming convention of
// author for the given object id, sector and exposure time. Wildcard may be
// passed for sector or expTime. Authors without a local naming convention,
// and sector/exposure pairs the convention cannot produce, yield nil.
func Glob(ticid int64, sector, expTime int, author string) []string {
	sec4 := "*"
	if sector != Wildcard {
		sec4 = fmt.Sprintf("%04d", sector)
	}

	switch author {
	case AuthorSPOC:
		var out []string
		if expTime == ExpShort || expTime == Wildcard {
			out = append(out, fmt.Sprintf("tess*-s%s-%016d-[0-9]*-[xsab]_lc.fits*", sec4, ticid))
		}
		if expTime == ExpFast || expTime == Wildcard {
			out = append(out, fmt.Sprintf("tess*-s%s-%016d-[0-9]*-[xsab]_fast-lc.fits*", sec4, ticid))
		}
		return out
	case AuthorTESSSPOC, AuthorQLP, AuthorTASOC, AuthorPATHOS:
		if sector != Wildcard && expTime != Wildcard && ExposureForSector(sector) != expTime {
			return nil
		}
		if expTime != Wildcard && !isFFIExposure(expTime) {
			return nil
		}
	default:
		return nil
	}

	switch author {
	case AuthorTESSSPOC:
		return []string{fmt.Sprintf("hlsp_tess-spoc_tess_phot_%016d-s%s_tess_v1_lc.fits*", ticid, sec4)}
	case AuthorQLP:
		return []string{fmt.Sprintf("hlsp_qlp_tess_ffi_s%s-%016d_tess_v01_llc.fits*", sec4, ticid)}
	case AuthorTASOC:
		var out []string
		for _, sec := range tasocSectors(sector) {
			out = append(out, fmt.Sprintf("hlsp_tasoc_tess_ffi_tic%011d-s%s-c*_tess_v*_lc.fits*", ticid, sec))
		}
		return out
	default:
		return []string{fmt.Sprintf("hlsp_pathos_tess_lightcurve_tic-%010d-s%s_tess_v1_llc.fits*", ticid, sec4)}
	}
}

// tasocSectors lists every zero-padded spelling of sector, two to four
// digits wide, that the TASOC convention admits
func tasocSectors(sector int) []string {
	if sector == Wildcard {
		return []string{"*"}
	}
	var out []string
	for _, format := range []string{"%02d", "%03d", "%04d"} {
		sec := fmt.Sprintf(format, sector)
		if len(sec) <= 4 && !slices.Contains(out, sec) {
			out = append(out, sec)
		}
	}
	return out
}

func isFFIExposure(expTime int) bool {
	return expTime == ExpFFIPrime || expTime == ExpFFIFirstExt || expTime == ExpFFISecondExt
}

package lightcurve

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/vjranagit/lkext/pkg/naming"
	"github.com/vjranagit/lkext/pkg/types"
)

// DefaultAuthorPriority is used when no priority list is supplied
var DefaultAuthorPriority = []string{
	naming.AuthorSPOC,
	naming.AuthorTESSSPOC,
	naming.AuthorQLP,
	naming.AuthorTASOC,
}

// Collection is an ordered set of light curves
type Collection []*LightCurve

// NewCollection returns the light curves ordered by start time
func NewCollection(lcs []*LightCurve) Collection {
	out := slices.Clone(lcs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TStart() < out[j].TStart()
	})
	return Collection(out)
}

// Sectors returns the SECTOR of each member, -1 where it is missing
func (c Collection) Sectors() []int {
	out := make([]int, len(c))
	for i, lc := range c {
		s, ok := lc.Sector()
		if !ok {
			s = -1
		}
		out[i] = s
	}
	return out
}

// BySector returns the members observed in sector, in collection order
func (c Collection) BySector(sector int) Collection {
	var out Collection
	for _, lc := range c {
		if s, ok := lc.Sector(); ok && s == sector {
			out = append(out, lc)
		}
	}
	return out
}

// SelectByAuthorPriority keeps one light curve per sector. A sector with a
// single product keeps it unchanged; for duplicated sectors every product
// has its author revised and the first match in priority order is kept.
// Sectors with no match are dropped. Sectors come out in ascending order.
func (c Collection) SelectByAuthorPriority(priority []string) (Collection, error) {
	if len(c) == 0 {
		return nil, types.NewValueError("collection", "", "the collection is empty")
	}
	if len(priority) == 0 {
		priority = DefaultAuthorPriority
	}

	counts := make(map[int]int)
	for _, s := range c.Sectors() {
		counts[s]++
	}
	sectors := slices.Sorted(maps.Keys(counts))

	out := make(Collection, 0, len(sectors))
	for _, sector := range sectors {
		dup := c.BySector(sector)
		if counts[sector] == 1 {
			out = append(out, dup[0])
			continue
		}

		revised := make([]*LightCurve, len(dup))
		for i, lc := range dup {
			r, err := ReviseAuthor(lc)
			if err != nil {
				return nil, fmt.Errorf("sector %d: %w", sector, err)
			}
			revised[i] = r
		}

	pick:
		for _, author := range priority {
			for _, lc := range revised {
				if lc.Author() == author {
					out = append(out, lc)
					break pick
				}
			}
		}
	}
	return out, nil
}

// Corrector transforms one member before stitching
type Corrector func(*LightCurve) (*LightCurve, error)

// Stitch corrects every member, concatenates them and sorts by time. The
// default corrector is NormalizeMedian. Metadata comes from the first member.
func (c Collection) Stitch(corrector Corrector) (*LightCurve, error) {
	if len(c) == 0 {
		return nil, types.NewValueError("collection", "", "cannot stitch an empty collection")
	}
	if corrector == nil {
		corrector = NormalizeMedian
	}

	parts := make([]*LightCurve, len(c))
	withQuality, withCadence := true, true
	for i, lc := range c {
		corrected, err := corrector(lc)
		if err != nil {
			return nil, fmt.Errorf("correct %s: %w", lc.Filename(), err)
		}
		parts[i] = corrected
		withQuality = withQuality && corrected.Quality != nil
		withCadence = withCadence && corrected.CadenceNo != nil
	}

	out := &LightCurve{Meta: maps.Clone(parts[0].Meta)}
	for _, p := range parts {
		out.Time = append(out.Time, p.Time...)
		out.Flux = append(out.Flux, p.Flux...)
		out.FluxErr = append(out.FluxErr, p.FluxErr...)
		if withQuality {
			out.Quality = append(out.Quality, p.Quality...)
		}
		if withCadence {
			out.CadenceNo = append(out.CadenceNo, p.CadenceNo...)
		}
	}
	out.Sort()
	return out, nil
}

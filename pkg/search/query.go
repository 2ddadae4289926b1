// Package search resolves an object id and observation constraints to the
// matching light-curve files under local data roots.
package search

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/vjranagit/lkext/pkg/naming"
	"github.com/vjranagit/lkext/pkg/types"
)

// Symbolic exposure tokens
const (
	ExpTokenFast  = "fast"
	ExpTokenShort = "short"
	ExpTokenLong  = "long"
	ExpTokenFFI   = "ffi"
)

var exposureTokens = map[string][]int{
	ExpTokenFast:  {20},
	ExpTokenShort: {60, 120},
	ExpTokenLong:  {600, 1200, 1800},
	ExpTokenFFI:   {600, 1200, 1800},
}

// Query is a search request as callers express it. Zero values leave a
// dimension unconstrained.
type Query struct {
	TICID     int64    `json:"ticid"`
	Mission   string   `json:"mission,omitempty"`
	Authors   []string `json:"authors,omitempty"`
	Quarters  []int    `json:"quarters,omitempty"`
	Campaigns []int    `json:"campaigns,omitempty"`
	Sectors   []int    `json:"sectors,omitempty"`
	// ExpTime holds symbolic (fast, short, long, ffi) or numeric tokens in seconds
	ExpTime []string `json:"exptime,omitempty"`
	// Cadence is a synonym of ExpTime; both are merged
	Cadence []string `json:"cadence,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Constraints is a normalized Query: vocabularies checked, tokens expanded,
// every set sorted and deduplicated.
type Constraints struct {
	TICID     int64
	Mission   string
	Authors   []string
	Quarters  []int
	Campaigns []int
	Sectors   []int
	ExpTimes  []int
	Limit     int
}

// Normalize validates q and expands it into Constraints
func (q Query) Normalize() (*Constraints, error) {
	if q.TICID <= 0 {
		return nil, types.NewValueError("ticid", strconv.FormatInt(q.TICID, 10), "must be a positive integer")
	}
	if q.Limit < 0 {
		return nil, types.NewValueError("limit", strconv.Itoa(q.Limit), "must not be negative")
	}

	c := &Constraints{
		TICID:     q.TICID,
		Quarters:  sortedInts(q.Quarters),
		Campaigns: sortedInts(q.Campaigns),
		Sectors:   sortedInts(q.Sectors),
		Limit:     q.Limit,
	}

	mission, err := normalizeMission(q.Mission)
	if err != nil {
		return nil, err
	}
	// the observation numbering decides the mission
	if len(c.Quarters) > 0 {
		mission = naming.MissionKepler
	}
	if len(c.Campaigns) > 0 {
		mission = naming.MissionK2
	}
	if len(c.Sectors) > 0 {
		mission = naming.MissionTESS
	}
	c.Mission = mission

	if c.Authors, err = normalizeAuthors(q.Authors); err != nil {
		return nil, err
	}
	tokens := append(slices.Clone(q.ExpTime), q.Cadence...)
	if c.ExpTimes, err = normalizeExpTimes(tokens); err != nil {
		return nil, err
	}
	return c, nil
}

func normalizeMission(mission string) (string, error) {
	if mission == "" {
		return "", nil
	}
	for _, m := range naming.Missions {
		if strings.EqualFold(m, mission) {
			return m, nil
		}
	}
	return "", types.NewValueError("mission", mission,
		fmt.Sprintf("must be one of %s", strings.Join(naming.Missions, ", ")))
}

func normalizeAuthors(authors []string) ([]string, error) {
	var out []string
	for _, a := range authors {
		a = strings.TrimSpace(a)
		if a == "" || a == "*" || strings.EqualFold(a, "all") {
			return slices.Clone(naming.Authors), nil
		}
		if !slices.Contains(naming.Authors, a) {
			reason := fmt.Sprintf("must be one of %s", strings.Join(naming.Authors, ", "))
			if s := suggestAuthor(a); s != "" {
				reason += fmt.Sprintf("; did you mean %s?", s)
			}
			return nil, types.NewValueError("author", a, reason)
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return slices.Clone(naming.Authors), nil
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// suggestAuthor returns the vocabulary entry closest to a, or "" when none
// is reasonably close
func suggestAuthor(a string) string {
	best, bestScore := "", float32(0.7)
	for _, candidate := range naming.Authors {
		score, err := edlib.StringsSimilarity(strings.ToUpper(a), strings.ToUpper(candidate), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}

func normalizeExpTimes(tokens []string) ([]int, error) {
	var out []int
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		if exps, ok := exposureTokens[tok]; ok {
			out = append(out, exps...)
			continue
		}
		if isWord(tok) {
			return nil, types.NewValueError("exptime", tok, "must be fast, short, long, ffi or seconds")
		}
		secs, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, types.NewTypeError("exptime", tok, "must be a symbolic token or a number of seconds")
		}
		if secs <= 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
			return nil, types.NewValueError("exptime", tok, "must be a positive number of seconds")
		}
		out = append(out, int(math.Round(secs)))
	}
	return sortedInts(out), nil
}

func isWord(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func sortedInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// Key returns a canonical string for memoization; equal constraint sets
// produce equal keys regardless of input order
func (c *Constraints) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tic=%d;mission=%s;authors=%s", c.TICID, c.Mission, strings.Join(c.Authors, ","))
	fmt.Fprintf(&b, ";quarters=%s;campaigns=%s", joinInts(c.Quarters), joinInts(c.Campaigns))
	fmt.Fprintf(&b, ";sectors=%s;exptime=%s;limit=%d", joinInts(c.Sectors), joinInts(c.ExpTimes), c.Limit)
	return b.String()
}

func joinInts(in []int) string {
	parts := make([]string, len(in))
	for i, v := range in {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// Patterns derives the deduplicated file-name globs of the cross product of
// sectors, exposure times and authors. Authors publishing for a mission
// other than the selected one are skipped.
func (c *Constraints) Patterns() []string {
	sectors := c.Sectors
	if len(sectors) == 0 {
		sectors = []int{naming.Wildcard}
	}
	exps := c.ExpTimes
	if len(exps) == 0 {
		exps = []int{naming.Wildcard}
	}

	var out []string
	seen := make(map[string]bool)
	for _, sector := range sectors {
		for _, exp := range exps {
			for _, author := range c.Authors {
				if c.Mission != "" && naming.AuthorMission(author) != c.Mission {
					continue
				}
				for _, p := range naming.Glob(c.TICID, sector, exp, author) {
					if !seen[p] {
						seen[p] = true
						out = append(out, p)
					}
				}
			}
		}
	}
	return out
}

// accepts reports whether a parsed file satisfies the constraints. Globs
// of most authors cannot pin the exposure time, so it is checked here.
func (c *Constraints) accepts(e types.Entry) bool {
	if e.TICID != c.TICID {
		return false
	}
	if !slices.Contains(c.Authors, e.Author) {
		return false
	}
	if len(c.Sectors) > 0 && !slices.Contains(c.Sectors, e.Sector) {
		return false
	}
	if len(c.ExpTimes) > 0 && !naming.EncodesExposure(e.Author) && !slices.Contains(c.ExpTimes, e.ExpTime) {
		return false
	}
	return true
}

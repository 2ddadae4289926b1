package search

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/vjranagit/lkext/pkg/lightcurve"
)

// loadConcurrency bounds concurrent file reads in Load
const loadConcurrency = 8

// SearchResults is the sorted list of matching files
type SearchResults struct {
	Paths []string `json:"paths"`
}

// Len returns the number of files; nil results have none
func (r *SearchResults) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Paths)
}

func (r *SearchResults) clone() *SearchResults {
	if r == nil {
		return nil
	}
	return &SearchResults{Paths: slices.Clone(r.Paths)}
}

// Load reads every file with reader, revises SPOC authors by cadence and
// returns the light curves ordered by start time. The first read or
// revision error aborts the load.
func (r *SearchResults) Load(ctx context.Context, reader lightcurve.Reader) (lightcurve.Collection, error) {
	if r.Len() == 0 {
		return nil, nil
	}

	lcs := make([]*lightcurve.LightCurve, len(r.Paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, path := range r.Paths {
		g.Go(func() error {
			lc, err := reader.Read(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			revised, err := lightcurve.ReviseAuthor(lc)
			if err != nil {
				return fmt.Errorf("failed to revise author of %s: %w", path, err)
			}
			lcs[i] = revised
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lightcurve.NewCollection(lcs), nil
}

package search

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/vjranagit/lkext/pkg/storage"
	"github.com/vjranagit/lkext/pkg/types"
)

// Defaults for the memoization cache
const (
	DefaultMemoCapacity = 128
	DefaultMemoTTL      = 5 * time.Minute
)

// Resolver searches configured data roots for light-curve files
type Resolver struct {
	roots      []string
	dirs       *storage.DirectoryCache
	memo       *storage.QueryCache[*SearchResults]
	logger     *slog.Logger
	sectorTree bool
}

// Option configures a Resolver
type Option func(*Resolver)

// WithDirectoryCache consults the directory cache before walking a root.
// Every scan through the cache invalidates memoized results.
func WithDirectoryCache(dc *storage.DirectoryCache) Option {
	return func(r *Resolver) { r.dirs = dc }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSectorTree declares that roots hold one subdirectory per sector,
// named with the sector number (sector_1, s0001, 1, ...)
func WithSectorTree(enabled bool) Option {
	return func(r *Resolver) { r.sectorTree = enabled }
}

// WithMemo sizes the memoization cache
func WithMemo(capacity int, ttl time.Duration) Option {
	return func(r *Resolver) { r.memo = storage.NewQueryCache[*SearchResults](capacity, ttl) }
}

// NewResolver creates a resolver over roots, searched in the given order
func NewResolver(roots []string, opts ...Option) *Resolver {
	r := &Resolver{
		roots:  slices.Clone(roots),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.memo == nil {
		r.memo = storage.NewQueryCache[*SearchResults](DefaultMemoCapacity, DefaultMemoTTL)
	}
	if r.dirs != nil {
		r.dirs.OnScan(r.memo.Invalidate)
	}
	return r
}

// Roots returns the searched roots
func (r *Resolver) Roots() []string {
	return slices.Clone(r.roots)
}

// Invalidate drops every memoized result
func (r *Resolver) Invalidate() {
	r.memo.Invalidate()
}

// CacheStats reports the memoization cache statistics
func (r *Resolver) CacheStats() storage.CacheStats {
	return r.memo.Stats()
}

// Search returns the files matching q, or nil when nothing matches. A file
// name found under several roots or directories is reported once, from the
// first root and the lexically first path.
func (r *Resolver) Search(ctx context.Context, q Query) (*SearchResults, error) {
	c, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	key := c.Key()
	if res, ok := r.memo.Get(key); ok {
		r.logger.Debug("search memo hit", "key", key)
		return res.clone(), nil
	}

	patterns := c.Patterns()
	if len(patterns) == 0 {
		r.logger.Debug("no file-name patterns for query", "key", key)
		r.memo.Put(key, nil)
		return nil, nil
	}

	var paths []string
	seen := make(map[string]bool)
	for _, root := range r.roots {
		candidates, err := r.candidates(ctx, root, c, patterns)
		if err != nil {
			return nil, err
		}
		for _, path := range candidates {
			name := filepath.Base(path)
			if seen[name] {
				continue
			}
			e, ok := storage.ParseFile(path)
			if !ok || !c.accepts(e) {
				continue
			}
			seen[name] = true
			paths = append(paths, path)
		}
	}

	var res *SearchResults
	if len(paths) > 0 {
		slices.Sort(paths)
		if c.Limit > 0 && len(paths) > c.Limit {
			paths = paths[:c.Limit]
		}
		res = &SearchResults{Paths: paths}
	}
	r.logger.Debug("search complete", "ticid", c.TICID, "patterns", len(patterns), "files", len(paths))
	r.memo.Put(key, res)
	return res.clone(), nil
}

// candidates lists the paths under root whose names match a pattern, in
// lexical order. The directory cache is used when it knows the object,
// then the sector tree when enabled, then a full walk.
func (r *Resolver) candidates(ctx context.Context, root string, c *Constraints, patterns []string) ([]string, error) {
	if r.dirs != nil {
		entries, ok, err := r.dirs.Lookup(ctx, root, c.TICID)
		switch {
		case err != nil:
			r.logger.Warn("directory cache lookup failed, walking root", "root", root, "err", err)
		case ok && len(entries) > 0:
			return matchEntries(entries, patterns)
		}
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		r.logger.Warn("skipping unreadable root", "root", root, "err", err)
		return nil, nil
	}

	if r.sectorTree && len(c.Sectors) > 0 {
		dirs, err := sectorDirs(root)
		if err != nil {
			return nil, err
		}
		if len(dirs) > 0 {
			var out []string
			for _, sector := range c.Sectors {
				dir, ok := dirs[sector]
				if !ok {
					r.logger.Debug("no directory for sector", "root", root, "sector", sector)
					continue
				}
				found, err := walkMatch(ctx, dir, patterns)
				if err != nil {
					return nil, err
				}
				out = append(out, found...)
			}
			slices.Sort(out)
			return out, nil
		}
	}

	return walkMatch(ctx, root, patterns)
}

func matchEntries(entries []types.Entry, patterns []string) ([]string, error) {
	var out []string
	for _, e := range entries {
		ok, err := matchAny(patterns, filepath.Base(e.Path))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e.Path)
		}
	}
	slices.Sort(out)
	return out, nil
}

func matchAny(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		matched, err := doublestar.Match(p, name)
		if err != nil {
			return false, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// walkMatch walks root recursively and returns the files whose names match
func walkMatch(ctx context.Context, root string, patterns []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := matchAny(patterns, d.Name())
		if err != nil {
			return err
		}
		if ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return out, nil
}

// sectorDirs maps sector numbers to the immediate subdirectories of root
// whose names contain digits; the digits form the sector number
func sectorDirs(root string) (map[int]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}
	dirs := make(map[int]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sector, ok := digits(e.Name())
		if !ok {
			continue
		}
		if _, dup := dirs[sector]; !dup {
			dirs[sector] = filepath.Join(root, e.Name())
		}
	}
	return dirs, nil
}

func digits(name string) (int, bool) {
	var buf []byte
	for i := 0; i < len(name); i++ {
		if name[i] >= '0' && name[i] <= '9' {
			buf = append(buf, name[i])
		}
	}
	if len(buf) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(string(buf))
	if err != nil {
		return 0, false
	}
	return n, true
}

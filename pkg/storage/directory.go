package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vjranagit/lkext/pkg/types"
)

// DirectoryCache records which light-curve files exist under scanned roots.
// Each scan is written to the relational table, saved as a timestamped
// snapshot and compared with the previous snapshot of the root.
type DirectoryCache struct {
	cfg       *Config
	table     *Table
	snapshots SnapshotStore
	reports   *ReportLog
	scanner   *Scanner
	logger    *slog.Logger

	mu       sync.Mutex
	indexes  map[string]*rootIndex
	hooks    []func()
	lastSnap time.Time
}

// rootIndex is the in-process copy of a root's table rows
type rootIndex struct {
	scannedAt time.Time
	index     *Index
}

// Option configures a DirectoryCache
type Option func(*DirectoryCache)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *DirectoryCache) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// OpenDirectoryCache opens the table, snapshot store and report log under
// cfg.Path
func OpenDirectoryCache(cfg *Config, opts ...Option) (*DirectoryCache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	d := &DirectoryCache{
		cfg:     cfg,
		logger:  slog.Default(),
		indexes: make(map[string]*rootIndex),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.scanner = NewScanner(d.logger)

	table, err := OpenTable(filepath.Join(cfg.Path, "index.db"))
	if err != nil {
		return nil, err
	}
	d.table = table

	snapshots, err := NewSnapshotStore(cfg)
	if err != nil {
		table.Close()
		return nil, err
	}
	d.snapshots = snapshots

	reports, err := NewReportLog(cfg.Path)
	if err != nil {
		snapshots.Close()
		table.Close()
		return nil, err
	}
	d.reports = reports

	return d, nil
}

// OnScan registers a hook run after every successful scan
func (d *DirectoryCache) OnScan(hook func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, hook)
}

// RootHash returns the stable key of a root: the xxhash64 of its cleaned
// absolute slash path
func RootHash(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(filepath.ToSlash(filepath.Clean(abs))))
}

// Scan walks every root and returns the merged object-to-paths index. Roots
// are walked concurrently; merging follows root order so the first root
// holding a file name wins. Each root's result is persisted and, when an
// older snapshot exists, an update report is logged.
func (d *DirectoryCache) Scan(ctx context.Context, roots ...string) (types.PathIndex, error) {
	abs := make([]string, len(roots))
	for i, root := range roots {
		a, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		abs[i] = a
	}

	results := make([][]types.Entry, len(abs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, root := range abs {
		g.Go(func() error {
			entries, err := d.scanner.Walk(gctx, root)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := types.PathIndex{}
	for i, root := range abs {
		if err := d.persist(ctx, root, results[i]); err != nil {
			return nil, err
		}
		for _, e := range results[i] {
			merged.Add(e.TICID, e.Path)
		}
	}

	d.mu.Lock()
	hooks := slices.Clone(d.hooks)
	d.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}

	d.logger.Info("scan complete", "roots", len(roots), "objects", len(merged))
	return merged, nil
}

// persist records one root's scan in the table, the snapshot store and,
// when it changed something, the report log
func (d *DirectoryCache) persist(ctx context.Context, root string, entries []types.Entry) error {
	hash := RootHash(root)
	now := d.snapshotTime()

	if err := d.table.Replace(ctx, root, hash, entries, now); err != nil {
		return err
	}

	idx := NewIndex()
	pi := types.PathIndex{}
	for _, e := range entries {
		idx.Add(e)
		pi.Add(e.TICID, e.Path)
	}
	d.mu.Lock()
	d.indexes[hash] = &rootIndex{scannedAt: now, index: idx}
	d.mu.Unlock()

	snap := &types.Snapshot{Root: root, RootHash: hash, CreatedAt: now, Index: pi}
	if err := d.snapshots.Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot of %s: %w", root, err)
	}

	prev, err := d.snapshots.Latest(ctx, hash, 2)
	if err != nil {
		return err
	}
	if len(prev) < 2 {
		return nil
	}
	updates := compareIndexes(prev[0].Index, prev[1].Index)
	if len(updates) == 0 {
		d.logger.Info("no updates since last scan", "root", root)
		return nil
	}
	report := &types.UpdateReport{
		Root:     root,
		RootHash: hash,
		From:     prev[1].CreatedAt,
		To:       prev[0].CreatedAt,
		Updates:  updates,
	}
	if err := d.reports.Append(report); err != nil {
		return fmt.Errorf("failed to log update report: %w", err)
	}
	d.logger.Info("new light curves since last scan", "root", root, "objects", len(updates))
	return nil
}

// snapshotTime returns a timestamp strictly after the previous one so
// snapshot keys never collide
func (d *DirectoryCache) snapshotTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	if !now.After(d.lastSnap) {
		now = d.lastSnap.Add(time.Nanosecond)
	}
	d.lastSnap = now
	return now
}

// Diff returns the paths added between the two latest snapshots of root.
// It is empty when fewer than two snapshots exist.
func (d *DirectoryCache) Diff(ctx context.Context, root string) (types.Updates, error) {
	snaps, err := d.snapshots.Latest(ctx, RootHash(root), 2)
	if err != nil {
		return nil, err
	}
	if len(snaps) < 2 {
		return types.Updates{}, nil
	}
	return compareIndexes(snaps[0].Index, snaps[1].Index), nil
}

// compareIndexes lists, per id, paths of newer missing from older. Ids new
// in newer report all their paths.
func compareIndexes(newer, older types.PathIndex) types.Updates {
	updates := types.Updates{}
	if newer.Equal(older) {
		return updates
	}
	for id, paths := range newer {
		known, ok := older[id]
		if !ok {
			updates[id] = slices.Clone(paths)
			continue
		}
		var added []string
		for _, p := range paths {
			if !slices.Contains(known, p) {
				added = append(added, p)
			}
		}
		if len(added) > 0 {
			updates[id] = added
		}
	}
	return updates
}

// Load returns the latest snapshot index of root, or an empty index when the
// root was never scanned
func (d *DirectoryCache) Load(ctx context.Context, root string) (types.PathIndex, error) {
	snaps, err := d.snapshots.Latest(ctx, RootHash(root), 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		d.logger.Warn("no cached scan for root, scan it first", "root", root)
		return types.PathIndex{}, nil
	}
	return snaps[0].Index, nil
}

// Lookup returns the recorded files of an object under root. ok is false
// when the root was never scanned, in which case callers walk it live.
func (d *DirectoryCache) Lookup(ctx context.Context, root string, ticid int64) ([]types.Entry, bool, error) {
	return d.Find(ctx, root, ticid, nil)
}

// Find is Lookup restricted by Index label selectors
func (d *DirectoryCache) Find(ctx context.Context, root string, ticid int64, selectors map[string]string) ([]types.Entry, bool, error) {
	idx, ok, err := d.rootIndex(ctx, root)
	if err != nil || !ok {
		return nil, ok, err
	}
	return idx.Find(ticid, selectors), true, nil
}

// rootIndex returns the in-process index of root, rebuilding it from the
// table when another process rescanned the root
func (d *DirectoryCache) rootIndex(ctx context.Context, root string) (*Index, bool, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	hash := RootHash(abs)

	scannedAt, ok, err := d.table.Scanned(ctx, hash)
	if err != nil || !ok {
		return nil, false, err
	}

	d.mu.Lock()
	cached := d.indexes[hash]
	d.mu.Unlock()
	if cached != nil && cached.scannedAt.Equal(scannedAt) {
		return cached.index, true, nil
	}

	entries, err := d.table.Entries(ctx, abs)
	if err != nil {
		return nil, false, err
	}
	idx := NewIndex()
	for _, e := range entries {
		idx.Add(e)
	}

	d.mu.Lock()
	d.indexes[hash] = &rootIndex{scannedAt: scannedAt, index: idx}
	d.mu.Unlock()
	return idx, true, nil
}

// Reports replays every logged update report, oldest first
func (d *DirectoryCache) Reports(ctx context.Context) ([]*types.UpdateReport, error) {
	var out []*types.UpdateReport
	err := ReplayReports(d.cfg.Path, func(r *types.UpdateReport) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// Snapshots returns the creation times of the snapshots of root
func (d *DirectoryCache) Snapshots(ctx context.Context, root string) ([]time.Time, error) {
	return d.snapshots.List(ctx, RootHash(root))
}

// Close closes the underlying stores
func (d *DirectoryCache) Close() error {
	var firstErr error
	for _, closeFn := range []func() error{d.reports.Close, d.snapshots.Close, d.table.Close} {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package storage

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vjranagit/lkext/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// started by package init of badger's dependencies
		goleak.IgnoreAnyFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreAnyFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
		goleak.IgnoreAnyFunction("github.com/golang/glog.(*loggingT).flushDaemon"),
	)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	return cfg
}

func TestSnapshotStoreSaveAndLatest(t *testing.T) {
	store, err := NewSnapshotStore(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to create snapshot store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	for i := 0; i < 3; i++ {
		snap := &types.Snapshot{
			Root:      "/data/tess",
			RootHash:  "roothash",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Index:     types.PathIndex{int64(i): {"/data/tess/file.fits"}},
		}
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Failed to save snapshot %d: %v", i, err)
		}
	}

	latest, err := store.Latest(ctx, "roothash", 2)
	if err != nil {
		t.Fatalf("Failed to read snapshots: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(latest))
	}
	if !latest[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("Expected newest snapshot first, got %v", latest[0].CreatedAt)
	}
	if _, ok := latest[1].Index[1]; !ok {
		t.Errorf("Expected second snapshot to hold id 1, got %v", latest[1].Index)
	}

	times, err := store.List(ctx, "roothash")
	if err != nil {
		t.Fatalf("Failed to list snapshots: %v", err)
	}
	if len(times) != 3 || !times[0].Equal(base) {
		t.Errorf("Expected 3 snapshots oldest first, got %v", times)
	}
}

func TestSnapshotStoreSeparatesRoots(t *testing.T) {
	store, err := NewSnapshotStore(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to create snapshot store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	store.Save(ctx, &types.Snapshot{RootHash: "a", CreatedAt: now, Index: types.PathIndex{}})
	store.Save(ctx, &types.Snapshot{RootHash: "ab", CreatedAt: now, Index: types.PathIndex{}})

	latest, err := store.Latest(ctx, "a", 10)
	if err != nil {
		t.Fatalf("Failed to read snapshots: %v", err)
	}
	if len(latest) != 1 {
		t.Errorf("Expected 1 snapshot for root a, got %d", len(latest))
	}

	none, err := store.Latest(ctx, "missing", 1)
	if err != nil {
		t.Fatalf("Expected no error for unknown root, got %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no snapshots, got %d", len(none))
	}
}

func TestSnapshotStorePrunes(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeepSnapshots = 2
	store, err := NewSnapshotStore(cfg)
	if err != nil {
		t.Fatalf("Failed to create snapshot store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		err := store.Save(ctx, &types.Snapshot{RootHash: "r", CreatedAt: base.Add(time.Duration(i) * time.Second)})
		if err != nil {
			t.Fatalf("Failed to save snapshot: %v", err)
		}
	}

	times, err := store.List(ctx, "r")
	if err != nil {
		t.Fatalf("Failed to list snapshots: %v", err)
	}
	if len(times) != 2 {
		t.Fatalf("Expected 2 retained snapshots, got %d", len(times))
	}
	if !times[1].Equal(base.Add(4 * time.Second)) {
		t.Errorf("Expected newest snapshot retained, got %v", times[1])
	}
}

func TestSnapshotKeyOrdering(t *testing.T) {
	early := snapshotKey("h", time.Unix(1, 0))
	late := snapshotKey("h", time.Unix(1000000000, 0))
	if string(early) >= string(late) {
		t.Errorf("Expected %s < %s", early, late)
	}

	ts, err := parseSnapshotKey(late, snapshotPrefix("h"))
	if err != nil {
		t.Fatalf("Failed to parse key: %v", err)
	}
	if !ts.Equal(time.Unix(1000000000, 0)) {
		t.Errorf("Expected round-tripped time, got %v", ts)
	}
}

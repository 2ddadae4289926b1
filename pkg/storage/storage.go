package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vjranagit/lkext/pkg/types"
)

// SnapshotStore persists timestamped index snapshots per root
type SnapshotStore interface {
	// Save writes a snapshot under its root hash and creation time
	Save(ctx context.Context, snap *types.Snapshot) error

	// Latest returns up to n snapshots of a root, newest first
	Latest(ctx context.Context, rootHash string, n int) ([]*types.Snapshot, error)

	// List returns the creation times of every snapshot of a root, oldest first
	List(ctx context.Context, rootHash string) ([]time.Time, error)

	// Close closes the store
	Close() error
}

// Config holds storage configuration
type Config struct {
	// Path is the cache directory holding index.db, snapshots/ and reports/
	Path             string
	CompressionLevel int
	// KeepSnapshots bounds the snapshots retained per root; 0 keeps all
	KeepSnapshots int
}

// DefaultCacheDir is the cache directory name under the user's home
const DefaultCacheDir = ".lightkurve_ext-cache"

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	path := DefaultCacheDir
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, DefaultCacheDir)
	}
	return &Config{
		Path:             path,
		CompressionLevel: 3,
		KeepSnapshots:    10,
	}
}

// badgerSnapshots implements SnapshotStore using BadgerDB
type badgerSnapshots struct {
	cfg        *Config
	db         *badger.DB
	compressor *Compressor
	mu         sync.RWMutex
}

// NewSnapshotStore opens the snapshot store under cfg.Path/snapshots
func NewSnapshotStore(cfg *Config) (SnapshotStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "snapshots"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &badgerSnapshots{
		cfg:        cfg,
		db:         db,
		compressor: compressor,
	}, nil
}

// Save implements SnapshotStore.Save
func (s *badgerSnapshots) Save(ctx context.Context, snap *types.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	payload := s.compressor.Compress(data)
	key := snapshotKey(snap.RootHash, snap.CreatedAt)

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if s.cfg.KeepSnapshots > 0 {
		return s.pruneLocked(snap.RootHash, s.cfg.KeepSnapshots)
	}
	return nil
}

// Latest implements SnapshotStore.Latest
func (s *badgerSnapshots) Latest(ctx context.Context, rootHash string, n int) ([]*types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payloads [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := snapshotPrefix(rootHash)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration starts at the last key not after the seek key
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(payloads) < n; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			payloads = append(payloads, val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}

	out := make([]*types.Snapshot, 0, len(payloads))
	for _, p := range payloads {
		snap, err := s.decode(p)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// List implements SnapshotStore.List
func (s *badgerSnapshots) List(ctx context.Context, rootHash string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(ctx, rootHash)
}

func (s *badgerSnapshots) listLocked(ctx context.Context, rootHash string) ([]time.Time, error) {
	var times []time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := snapshotPrefix(rootHash)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ts, err := parseSnapshotKey(it.Item().Key(), prefix)
			if err != nil {
				return err
			}
			times = append(times, ts)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return times, nil
}

// pruneLocked deletes all but the newest keep snapshots of a root
func (s *badgerSnapshots) pruneLocked(rootHash string, keep int) error {
	times, err := s.listLocked(context.Background(), rootHash)
	if err != nil {
		return err
	}
	if len(times) <= keep {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, ts := range times[:len(times)-keep] {
			if err := txn.Delete(snapshotKey(rootHash, ts)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *badgerSnapshots) decode(payload []byte) (*types.Snapshot, error) {
	data, err := s.compressor.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCorruptSnapshot, err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCorruptSnapshot, err)
	}
	if snap.Index == nil {
		snap.Index = types.PathIndex{}
	}
	return &snap, nil
}

// Close implements SnapshotStore.Close
func (s *badgerSnapshots) Close() error {
	s.compressor.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func snapshotPrefix(rootHash string) []byte {
	return []byte("snap/" + rootHash + "/")
}

// snapshotKey zero-pads the timestamp so keys sort chronologically
func snapshotKey(rootHash string, createdAt time.Time) []byte {
	return fmt.Appendf(snapshotPrefix(rootHash), "%020d", createdAt.UnixNano())
}

func parseSnapshotKey(key, prefix []byte) (time.Time, error) {
	rest, ok := strings.CutPrefix(string(key), string(prefix))
	if !ok {
		return time.Time{}, errors.New("snapshot key outside prefix")
	}
	ns, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed snapshot key %q: %w", key, err)
	}
	return time.Unix(0, ns), nil
}

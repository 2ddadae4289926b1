package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vjranagit/lkext/pkg/types"
)

const tableSchema = `
CREATE TABLE IF NOT EXISTS lightcurves (
	ticid     INTEGER NOT NULL,
	author    TEXT    NOT NULL,
	sector    INTEGER NOT NULL,
	exp_time  INTEGER NOT NULL,
	file_path TEXT    NOT NULL,
	PRIMARY KEY (ticid, sector, exp_time, author)
);
CREATE INDEX IF NOT EXISTS idx_lightcurves_path ON lightcurves(file_path);
CREATE TABLE IF NOT EXISTS scanned_roots (
	root_hash  TEXT PRIMARY KEY,
	root       TEXT NOT NULL,
	scanned_at INTEGER NOT NULL
);`

// Table is the relational light-curve index. Writers use INSERT OR IGNORE
// inside one transaction per root, so concurrent processes scanning the
// same root cannot corrupt it.
type Table struct {
	db *sql.DB
}

// OpenTable opens or creates the index database at path
func OpenTable(path string) (*Table, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "busy_timeout(10000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(tableSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Table{db: db}, nil
}

// Replace records the entries of a root scan. Rows previously recorded
// under the root are dropped first so deleted files disappear.
func (t *Table) Replace(ctx context.Context, root, rootHash string, entries []types.Entry, scannedAt time.Time) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lo, hi := pathRange(root)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM lightcurves WHERE file_path >= ? AND file_path < ?`, lo, hi); err != nil {
		return fmt.Errorf("failed to clear root rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO lightcurves (ticid, author, sector, exp_time, file_path) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.TICID, e.Author, e.Sector, e.ExpTime, e.Path); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.Path, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scanned_roots (root_hash, root, scanned_at) VALUES (?, ?, ?)
		 ON CONFLICT(root_hash) DO UPDATE SET root = excluded.root, scanned_at = excluded.scanned_at`,
		rootHash, root, scannedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to record scanned root: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan: %w", err)
	}
	return nil
}

// Scanned reports whether a root has been recorded, and when
func (t *Table) Scanned(ctx context.Context, rootHash string) (time.Time, bool, error) {
	var ns int64
	err := t.db.QueryRowContext(ctx,
		`SELECT scanned_at FROM scanned_roots WHERE root_hash = ?`, rootHash).Scan(&ns)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query scanned roots: %w", err)
	}
	return time.Unix(0, ns), true, nil
}

// Lookup returns the rows of an object recorded under root, ordered by path
func (t *Table) Lookup(ctx context.Context, root string, ticid int64) ([]types.Entry, error) {
	lo, hi := pathRange(root)
	return t.query(ctx,
		`SELECT ticid, author, sector, exp_time, file_path FROM lightcurves
		 WHERE ticid = ? AND file_path >= ? AND file_path < ?
		 ORDER BY file_path`, ticid, lo, hi)
}

// Entries returns every row recorded under root, ordered by path
func (t *Table) Entries(ctx context.Context, root string) ([]types.Entry, error) {
	lo, hi := pathRange(root)
	return t.query(ctx,
		`SELECT ticid, author, sector, exp_time, file_path FROM lightcurves
		 WHERE file_path >= ? AND file_path < ?
		 ORDER BY file_path`, lo, hi)
}

func (t *Table) query(ctx context.Context, query string, args ...any) ([]types.Entry, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query light curves: %w", err)
	}
	defer rows.Close()

	var out []types.Entry
	for rows.Next() {
		var e types.Entry
		if err := rows.Scan(&e.TICID, &e.Author, &e.Sector, &e.ExpTime, &e.Path); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of recorded rows
func (t *Table) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lightcurves`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// Close closes the database
func (t *Table) Close() error {
	return t.db.Close()
}

// pathRange returns the half-open key range of paths below root.
// '0' is the byte after '/'.
func pathRange(root string) (string, string) {
	prefix := strings.TrimSuffix(filepath.ToSlash(root), "/") + "/"
	return prefix, prefix[:len(prefix)-1] + "0"
}

package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vjranagit/lkext/pkg/naming"
	"github.com/vjranagit/lkext/pkg/types"
)

// Scanner walks a directory tree for light-curve files
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a scanner; a nil logger uses slog.Default
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Walk returns the recognised light-curve files under root in lexical path
// order. A second file with an already recorded name under the same object
// is skipped. The root must exist.
func (s *Scanner) Walk(ctx context.Context, root string) ([]types.Entry, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to scan root: %s is not a directory", abs)
	}

	s.logger.Debug("scanning root", "root", abs)

	var entries []types.Entry
	seen := types.PathIndex{}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		e, ok := ParseFile(path)
		if !ok {
			return nil
		}
		if !seen.Add(e.TICID, path) {
			s.logger.Debug("skipping duplicate file name", "path", path, "ticid", e.TICID)
			return nil
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", abs, err)
	}

	s.logger.Debug("scanned root", "root", abs, "files", len(entries), "objects", len(seen))
	return entries, nil
}

// ParseFile recognises path by its base name and sets the entry path
func ParseFile(path string) (types.Entry, bool) {
	name := filepath.Base(path)
	if !naming.HasExtension(name) {
		return types.Entry{}, false
	}
	e, ok := naming.Parse(name)
	if !ok {
		return types.Entry{}, false
	}
	e.Path = path
	return e, true
}

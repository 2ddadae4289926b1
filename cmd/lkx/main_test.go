package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	spocName = "tess2018206045859-s0001-0000000025155310-0120-s_lc.fits"
	qlpName  = "hlsp_qlp_tess_ffi_s0002-0000000025155310_tess_v01_llc.fits"

	tessSpocName = "hlsp_tess-spoc_tess_phot_0000000025155310-s0001_tess_v1_lc.fits"
)

// run executes the CLI in-process against a private cache directory
func run(t *testing.T, cacheDir string, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"LKX_CONFIG", "LKX_CACHE_DIR", "LKX_ROOTS", "LKX_LISTEN_ADDR", "LKX_SECTOR_TREE"} {
		t.Setenv(key, "")
	}
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"lkx", "--cache-dir", cacheDir}, args...))
	return stdout.String(), err
}

func setupRoot(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), nil, 0644))
	}
	return root
}

func TestScanAndDiff(t *testing.T) {
	cache := t.TempDir()
	root := setupRoot(t, spocName)

	out, err := run(t, cache, "scan", root)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 1 files of 1 objects")
	assert.Contains(t, out, "no updates")

	require.NoError(t, os.WriteFile(filepath.Join(root, qlpName), nil, 0644))
	out, err = run(t, cache, "scan", root)
	require.NoError(t, err)
	assert.Contains(t, out, "new light curves for 1 objects")
	assert.Contains(t, out, qlpName)

	out, err = run(t, cache, "diff", root)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(root, qlpName))

	out, err = run(t, cache, "reports")
	require.NoError(t, err)
	assert.Contains(t, out, qlpName)
}

func TestSearchCommand(t *testing.T) {
	cache := t.TempDir()
	root := setupRoot(t, spocName, qlpName)

	out, err := run(t, cache, "search", "--root", root, "--author", "QLP", "25155310")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, qlpName), strings.TrimSpace(out))

	out, err = run(t, cache, "search", "--root", root, "--sector", "1", "25155310")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, spocName), strings.TrimSpace(out))

	out, err = run(t, cache, "search", "--root", root, "42")
	require.NoError(t, err)
	assert.Contains(t, out, "no light curves found")
}

func TestSearchCommandByAuthors(t *testing.T) {
	cache := t.TempDir()
	root := setupRoot(t, spocName, tessSpocName)

	out, err := run(t, cache, "search", "--root", root, "--author", "SPOC", "--author", "TESS-SPOC", "25155310")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, tessSpocName), filepath.Join(root, spocName)},
		strings.Fields(out))
}

func TestSearchCommandErrors(t *testing.T) {
	cache := t.TempDir()
	root := setupRoot(t)

	_, err := run(t, cache, "search", "--root", root)
	assert.Error(t, err)

	_, err = run(t, cache, "search", "--root", root, "not-a-number")
	assert.Error(t, err)

	_, err = run(t, cache, "search", "--root", root, "--exptime", "medium", "1")
	assert.Error(t, err)

	_, err = run(t, cache, "search", "1")
	assert.Error(t, err, "no roots configured")
}

func TestCorrectorFor(t *testing.T) {
	for _, name := range []string{"", "median", "astronet"} {
		c, err := correctorFor(name)
		require.NoError(t, err)
		assert.NotNil(t, c)
	}
	_, err := correctorFor("zscore")
	assert.Error(t, err)
}

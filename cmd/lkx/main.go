package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/vjranagit/lkext/internal/config"
	"github.com/vjranagit/lkext/pkg/search"
	"github.com/vjranagit/lkext/pkg/storage"
)

// Version is the lkx release
const Version = "0.3.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lkx: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "lkx",
		Usage:                  "Find, index and assemble light curves already on local disk",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file path",
				EnvVars: []string{"LKX_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Cache directory (overrides config)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			scanCommand(),
			diffCommand(),
			reportsCommand(),
			watchCommand(),
			searchCommand(),
			stitchCommand(),
			serveCommand(),
		},
	}
}

// env is the per-invocation state shared by commands
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	dirs   *storage.DirectoryCache
}

// setup loads configuration and the logger; the directory cache is opened
// on demand
func setup(c *cli.Context) (*env, error) {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("cache-dir"); dir != "" {
		cfg.Storage.Path = dir
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// openCache opens the directory cache under the configured path
func (e *env) openCache() error {
	dirs, err := storage.OpenDirectoryCache(e.cfg.ToStorageConfig(), storage.WithLogger(e.logger))
	if err != nil {
		return fmt.Errorf("failed to open directory cache at %s: %w", e.cfg.Storage.Path, err)
	}
	e.dirs = dirs
	return nil
}

// resolver builds a resolver over roots, falling back to the configured
// roots. An unavailable cache degrades to walking the roots.
func (e *env) resolver(roots []string) (*search.Resolver, error) {
	if len(roots) == 0 {
		roots = e.cfg.Search.Roots
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no search roots: pass --root or set search.roots")
	}
	abs := make([]string, len(roots))
	for i, root := range roots {
		a, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
		}
		abs[i] = a
	}

	if e.cfg.Search.UseCache && e.dirs == nil {
		if err := e.openCache(); err != nil {
			e.logger.Warn("directory cache unavailable, walking roots", "err", err)
		}
	}
	return search.NewResolver(abs, e.cfg.ToSearchOptions(e.dirs, e.logger)...), nil
}

func (e *env) close() {
	if e.dirs != nil {
		if err := e.dirs.Close(); err != nil {
			e.logger.Error("failed to close directory cache", "err", err)
		}
	}
}

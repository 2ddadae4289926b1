package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/vjranagit/lkext/pkg/storage"
	"github.com/vjranagit/lkext/pkg/types"
)

// rootsArg returns the roots given as arguments, or the configured roots
func rootsArg(c *cli.Context, e *env) ([]string, error) {
	roots := c.Args().Slice()
	if len(roots) == 0 {
		roots = e.cfg.Search.Roots
	}
	if len(roots) == 0 {
		return nil, errors.New("no roots: pass them as arguments or set search.roots")
	}
	return roots, nil
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Index the light-curve files under data roots and report new ones",
		ArgsUsage: "[root...]",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()
			roots, err := rootsArg(c, e)
			if err != nil {
				return err
			}
			if err := e.openCache(); err != nil {
				return err
			}

			index, err := e.dirs.Scan(c.Context, roots...)
			if err != nil {
				return err
			}
			files := 0
			for _, paths := range index {
				files += len(paths)
			}
			fmt.Fprintf(c.App.Writer, "indexed %d files of %d objects\n", files, len(index))

			for _, root := range roots {
				updates, err := e.dirs.Diff(c.Context, root)
				if err != nil {
					return err
				}
				printUpdates(c.App.Writer, root, updates)
			}
			return nil
		},
	}
}

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Show files added between the last two scans of a root",
		ArgsUsage: "<root>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("usage: lkx diff <root>")
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.openCache(); err != nil {
				return err
			}

			root := c.Args().First()
			updates, err := e.dirs.Diff(c.Context, root)
			if err != nil {
				return err
			}
			printUpdates(c.App.Writer, root, updates)
			return nil
		},
	}
}

func reportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "reports",
		Usage: "Replay the logged update reports",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.openCache(); err != nil {
				return err
			}

			reports, err := e.dirs.Reports(c.Context)
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Fprintf(c.App.Writer, "%s (%s .. %s)\n", r.Root,
					r.From.Format("2006-01-02 15:04:05"), r.To.Format("2006-01-02 15:04:05"))
				printUpdates(c.App.Writer, "", r.Updates)
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Rescan a root whenever light-curve files appear in it",
		ArgsUsage: "<root>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before rescanning",
				Value: storage.DefaultWatchDebounce,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("usage: lkx watch <root>")
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.openCache(); err != nil {
				return err
			}

			root, err := filepath.Abs(c.Args().First())
			if err != nil {
				return err
			}
			if _, err := e.dirs.Scan(c.Context, root); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return e.dirs.Watch(ctx, root, c.Duration("debounce"), func(err error) {
				if err != nil {
					return
				}
				updates, err := e.dirs.Diff(ctx, root)
				if err == nil {
					printUpdates(c.App.Writer, root, updates)
				}
			})
		},
	}
}

func printUpdates(w io.Writer, root string, updates types.Updates) {
	if len(updates) == 0 {
		if root != "" {
			fmt.Fprintf(w, "%s: no updates\n", root)
		}
		return
	}
	if root != "" {
		fmt.Fprintf(w, "%s: new light curves for %d objects\n", root, len(updates))
	}
	for _, id := range types.PathIndex(updates).IDs() {
		fmt.Fprintf(w, "  %d\n", id)
		for _, path := range updates[id] {
			fmt.Fprintf(w, "    %s\n", path)
		}
	}
}

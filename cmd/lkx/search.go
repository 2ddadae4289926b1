package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/vjranagit/lkext/pkg/fitsreader"
	"github.com/vjranagit/lkext/pkg/lightcurve"
	"github.com/vjranagit/lkext/pkg/search"
)

// queryFlags are shared by search and stitch
func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Data root to search, in priority order (overrides config)",
		},
		&cli.StringSliceFlag{
			Name:    "author",
			Aliases: []string{"a"},
			Usage:   "Pipeline author (SPOC, TESS-SPOC, QLP, TASOC, PATHOS, ...); default all",
		},
		&cli.IntSliceFlag{
			Name:    "sector",
			Aliases: []string{"s"},
			Usage:   "TESS sector",
		},
		&cli.IntSliceFlag{
			Name:  "quarter",
			Usage: "Kepler quarter",
		},
		&cli.IntSliceFlag{
			Name:  "campaign",
			Usage: "K2 campaign",
		},
		&cli.StringSliceFlag{
			Name:    "exptime",
			Aliases: []string{"e"},
			Usage:   "Exposure time: fast, short, long, ffi or seconds",
		},
		&cli.StringSliceFlag{
			Name:  "cadence",
			Usage: "Synonym of --exptime",
		},
		&cli.StringFlag{
			Name:  "mission",
			Usage: "Kepler, K2 or TESS",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of files",
		},
		&cli.BoolFlag{
			Name:  "sector-tree",
			Usage: "Roots hold one subdirectory per sector",
		},
	}
}

// parseQuery reads the object id argument and the query flags
func parseQuery(c *cli.Context) (search.Query, error) {
	if c.NArg() < 1 {
		return search.Query{}, errors.New("missing object id argument")
	}
	ticid, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return search.Query{}, fmt.Errorf("invalid object id %q", c.Args().First())
	}
	return search.Query{
		TICID:     ticid,
		Mission:   c.String("mission"),
		Authors:   c.StringSlice("author"),
		Quarters:  c.IntSlice("quarter"),
		Campaigns: c.IntSlice("campaign"),
		Sectors:   c.IntSlice("sector"),
		ExpTime:   c.StringSlice("exptime"),
		Cadence:   c.StringSlice("cadence"),
		Limit:     c.Int("limit"),
	}, nil
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "List local light-curve files of an object",
		ArgsUsage: "<ticid>",
		Flags: append(queryFlags(),
			&cli.BoolFlag{
				Name:  "load",
				Usage: "Read every file and print a per-file summary",
			},
		),
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()
			if c.IsSet("sector-tree") {
				e.cfg.Search.SectorTree = c.Bool("sector-tree")
			}

			q, err := parseQuery(c)
			if err != nil {
				return err
			}
			r, err := e.resolver(c.StringSlice("root"))
			if err != nil {
				return err
			}
			res, err := r.Search(c.Context, q)
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Fprintln(c.App.Writer, "no light curves found")
				return nil
			}

			if !c.Bool("load") {
				for _, path := range res.Paths {
					fmt.Fprintln(c.App.Writer, path)
				}
				return nil
			}
			lcs, err := res.Load(c.Context, fitsreader.New(e.cfg.ToReaderOptions()...))
			if err != nil {
				return err
			}
			for _, lc := range lcs {
				printSummary(c.App.Writer, lc)
			}
			return nil
		},
	}
}

func stitchCommand() *cli.Command {
	return &cli.Command{
		Name:      "stitch",
		Usage:     "Load one light curve per sector, normalize and stitch them",
		ArgsUsage: "<ticid>",
		Flags: append(queryFlags(),
			&cli.StringSliceFlag{
				Name:  "priority",
				Usage: "Author priority for duplicated sectors (overrides config)",
			},
			&cli.StringFlag{
				Name:  "normalize",
				Usage: "Per-sector normalization: median or astronet",
				Value: "median",
			},
			&cli.StringFlag{
				Name:  "fill",
				Usage: "Fill gaps with gaussian_noise, nan or zero",
			},
			&cli.Float64Flag{
				Name:  "split-gap",
				Usage: "Report segments separated by gaps longer than this many days",
			},
			&cli.IntFlag{
				Name:  "bins",
				Usage: "Bin the stitched light curve into this many bins",
			},
			&cli.Float64Flag{
				Name:  "bin-width",
				Usage: "Bin width in days (default derived from --bins)",
			},
		),
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()
			if c.IsSet("sector-tree") {
				e.cfg.Search.SectorTree = c.Bool("sector-tree")
			}

			q, err := parseQuery(c)
			if err != nil {
				return err
			}
			corrector, err := correctorFor(c.String("normalize"))
			if err != nil {
				return err
			}
			r, err := e.resolver(c.StringSlice("root"))
			if err != nil {
				return err
			}
			res, err := r.Search(c.Context, q)
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Fprintln(c.App.Writer, "no light curves found")
				return nil
			}

			lcs, err := res.Load(c.Context, fitsreader.New(e.cfg.ToReaderOptions()...))
			if err != nil {
				return err
			}
			priority := e.cfg.Search.AuthorPriority
			if c.IsSet("priority") {
				priority = c.StringSlice("priority")
			}
			picked, err := lcs.SelectByAuthorPriority(priority)
			if err != nil {
				return err
			}
			for _, lc := range picked {
				printSummary(c.App.Writer, lc)
			}

			stitched, err := picked.Stitch(corrector)
			if err != nil {
				return err
			}
			if method := c.String("fill"); method != "" {
				if stitched, err = lightcurve.FillGaps(stitched, method); err != nil {
					return err
				}
			}
			fmt.Fprint(c.App.Writer, "stitched: ")
			printSummary(c.App.Writer, stitched)

			if gap := c.Float64("split-gap"); gap > 0 {
				n := 0
				for segment := range lightcurve.SplitByGap(stitched, gap) {
					n++
					fmt.Fprintf(c.App.Writer, "segment %d: %d samples, %.5f to %.5f\n",
						n, segment.Len(), segment.Time[0], segment.Time[segment.Len()-1])
				}
			}

			if bins := c.Int("bins"); bins > 0 {
				var opts []lightcurve.BinOption
				if c.IsSet("bin-width") {
					opts = append(opts, lightcurve.WithBinWidth(c.Float64("bin-width")))
				}
				binned, err := lightcurve.FastBin(stitched, bins, opts...)
				if err != nil {
					return err
				}
				fmt.Fprint(c.App.Writer, "binned: ")
				printSummary(c.App.Writer, binned)
			}
			return nil
		},
	}
}

func correctorFor(name string) (lightcurve.Corrector, error) {
	switch name {
	case "", "median":
		return lightcurve.NormalizeMedian, nil
	case "astronet":
		return lightcurve.AstronetNormalize, nil
	default:
		return nil, fmt.Errorf("unknown normalization %q", name)
	}
}

// printSummary writes one line describing lc, including the noise level of
// raw flux with enough samples
func printSummary(w io.Writer, lc *lightcurve.LightCurve) {
	sector, _ := lc.Sector()
	line := fmt.Sprintf("%s sector=%d author=%s samples=%d", lc.Filename(), sector, lc.Author(), lc.Len())
	if normalized, _ := lc.Meta[lightcurve.MetaNormalized].(bool); normalized {
		fmt.Fprintln(w, line)
		return
	}
	if cdpp, err := lightcurve.EstimateCDPP(lc); err == nil && !math.IsNaN(cdpp) {
		line += fmt.Sprintf(" cdpp=%.1fppm", cdpp*1e6)
	}
	fmt.Fprintln(w, line)
}

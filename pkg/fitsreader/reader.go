// Package fitsreader loads light curves from FITS files.
package fitsreader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/klauspost/compress/gzip"

	"github.com/vjranagit/lkext/pkg/lightcurve"
	"github.com/vjranagit/lkext/pkg/naming"
)

// Default column names of the light-curve table
const (
	DefaultFluxColumn = "PDCSAP_FLUX"
	timeColumn        = "TIME"
	qualityColumn     = "QUALITY"
	cadenceColumn     = "CADENCENO"
)

// qlp and a few other pipelines name their flux columns differently
var fallbackFluxColumns = []string{"SAP_FLUX", "KSPSAP_FLUX", "FLUX"}

// Reader reads the first binary-table extension of a light-curve file
type Reader struct {
	fluxColumn     string
	qualityBitmask int32
}

// Option configures a Reader
type Option func(*Reader)

// WithFluxColumn selects the flux column; its error column is <name>_ERR
func WithFluxColumn(name string) Option {
	return func(r *Reader) {
		if name != "" {
			r.fluxColumn = strings.ToUpper(name)
		}
	}
}

// WithQualityBitmask drops samples whose quality shares a bit with mask
func WithQualityBitmask(mask int32) Option {
	return func(r *Reader) {
		r.qualityBitmask = mask
	}
}

// New creates a Reader
func New(opts ...Option) *Reader {
	r := &Reader{fluxColumn: DefaultFluxColumn}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ lightcurve.Reader = (*Reader)(nil)

// Read implements lightcurve.Reader
func (r *Reader) Read(ctx context.Context, path string) (*lightcurve.LightCurve, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".gz") {
		raw, err = gunzip(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
		}
	}

	f, err := fitsio.Open(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to open FITS file %s: %w", path, err)
	}
	defer f.Close()

	if len(f.HDUs()) < 2 {
		return nil, fmt.Errorf("%s has no light-curve extension", path)
	}
	tbl, ok := f.HDU(1).(*fitsio.Table)
	if !ok {
		return nil, fmt.Errorf("%s: extension 1 is not a table", path)
	}

	lc, err := r.readTable(tbl)
	if err != nil {
		return nil, fmt.Errorf("failed to read table of %s: %w", path, err)
	}

	name := filepath.Base(path)
	lc.Meta[lightcurve.MetaFilename] = name
	copyHeader(lc.Meta, f.HDU(0).Header(), "SECTOR", "TICID", "OBJECT")
	copyHeader(lc.Meta, tbl.Header(), "TIMEDEL", "TSTART", "TSTOP")
	if entry, ok := naming.Parse(name); ok {
		lc.Meta[lightcurve.MetaAuthor] = metaAuthor(entry.Author)
		if _, has := lc.Meta[lightcurve.MetaSector]; !has {
			lc.Meta[lightcurve.MetaSector] = entry.Sector
		}
	}

	return lc, nil
}

func (r *Reader) readTable(tbl *fitsio.Table) (*lightcurve.LightCurve, error) {
	fluxCol := r.fluxColumn
	if tbl.Index(fluxCol) < 0 {
		for _, c := range fallbackFluxColumns {
			if tbl.Index(c) >= 0 {
				fluxCol = c
				break
			}
		}
	}
	if tbl.Index(timeColumn) < 0 || tbl.Index(fluxCol) < 0 {
		return nil, fmt.Errorf("missing %s or %s column", timeColumn, fluxCol)
	}
	errCol := fluxCol + "_ERR"
	hasErr := tbl.Index(errCol) >= 0
	hasQuality := tbl.Index(qualityColumn) >= 0
	hasCadence := tbl.Index(cadenceColumn) >= 0

	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lc := &lightcurve.LightCurve{Meta: lightcurve.Meta{}}
	if hasQuality {
		lc.Quality = []int32{}
	}
	if hasCadence {
		lc.CadenceNo = []int64{}
	}

	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.Scan(&row); err != nil {
			return nil, err
		}

		var quality int32
		if hasQuality {
			quality = int32(toInt(row[qualityColumn]))
			if quality&r.qualityBitmask != 0 {
				continue
			}
		}

		lc.Time = append(lc.Time, toFloat(row[timeColumn]))
		lc.Flux = append(lc.Flux, toFloat(row[fluxCol]))
		fluxErr := math.NaN()
		if hasErr {
			fluxErr = toFloat(row[errCol])
		}
		lc.FluxErr = append(lc.FluxErr, fluxErr)
		if hasQuality {
			lc.Quality = append(lc.Quality, quality)
		}
		if hasCadence {
			lc.CadenceNo = append(lc.CadenceNo, toInt(row[cadenceColumn]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lc, lc.Validate()
}

// metaAuthor maps a naming author to the AUTHOR value pipelines write:
// TESS-SPOC products carry AUTHOR=SPOC in their headers.
func metaAuthor(author string) string {
	if author == naming.AuthorTESSSPOC {
		return naming.AuthorSPOC
	}
	return author
}

func copyHeader(meta lightcurve.Meta, hdr *fitsio.Header, keys ...string) {
	for _, key := range keys {
		card := hdr.Get(key)
		if card == nil {
			continue
		}
		meta[key] = card.Value
	}
}

func gunzip(raw []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case *float64:
		return *x
	case float32:
		return float64(x)
	case *float32:
		return float64(*x)
	case int16, *int16, int32, *int32, int64, *int64:
		return float64(toInt(x))
	default:
		return math.NaN()
	}
}

func toInt(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case *int64:
		return *x
	case int32:
		return int64(x)
	case *int32:
		return int64(*x)
	case int16:
		return int64(x)
	case *int16:
		return int64(*x)
	case uint8:
		return int64(x)
	default:
		return 0
	}
}

// Package points loads candidate unit locations from CSV, XLSX and point
// shapefile tables.
package points

import (
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/unitmap/internal/model"
)

// Default coordinate column names.
const (
	DefaultXColumn = "X"
	DefaultYColumn = "Y"
)

// Options selects the coordinate columns and, for workbooks, the sheet.
type Options struct {
	XColumn string `yaml:"x_column" mapstructure:"x_column"`
	YColumn string `yaml:"y_column" mapstructure:"y_column"`
	// Sheet names the workbook sheet; empty reads the first sheet.
	Sheet string `yaml:"sheet" mapstructure:"sheet"`
}

// DefaultOptions reads X and Y from the first sheet.
func DefaultOptions() Options {
	return Options{XColumn: DefaultXColumn, YColumn: DefaultYColumn}
}

func (o Options) withDefaults() Options {
	if o.XColumn == "" {
		o.XColumn = DefaultXColumn
	}
	if o.YColumn == "" {
		o.YColumn = DefaultYColumn
	}
	return o
}

// Format is a supported point table format.
type Format string

const (
	FormatCSV       Format = "csv"
	FormatXLSX      Format = "xlsx"
	FormatShapefile Format = "shp"
)

// FormatOf picks the format from a file name's extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".shp":
		return FormatShapefile, nil
	}
	return "", model.DataError(eris.Errorf("points: unsupported point table %q (want .csv, .xlsx or .shp)", filepath.Base(name)))
}

// Load reads the point table at path.
func Load(ctx context.Context, path string, opts Options) (model.Dataset, error) {
	format, err := FormatOf(path)
	if err != nil {
		return model.Dataset{}, err
	}

	switch format {
	case FormatXLSX:
		return LoadXLSX(path, opts)
	case FormatShapefile:
		return LoadShapefile(path, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return model.Dataset{}, eris.Wrapf(err, "points: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(ctx, filepath.Base(path), f, opts)
}

// Read decodes an uploaded point table held in memory. Shapefiles need their
// sidecar files and cannot be read this way.
func Read(ctx context.Context, name string, r io.Reader, opts Options) (model.Dataset, error) {
	format, err := FormatOf(name)
	if err != nil {
		return model.Dataset{}, err
	}

	switch format {
	case FormatCSV:
		return ReadCSV(ctx, name, r, opts)
	case FormatXLSX:
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, r); err != nil {
			return model.Dataset{}, eris.Wrap(err, "points: read workbook")
		}
		return ReadXLSX(name, buf.Bytes(), opts)
	}
	return model.Dataset{}, model.DataError(eris.Errorf("points: %s uploads are not supported, convert %q to csv or xlsx", format, name))
}

// table builds a Dataset from a header row and string rows. Coordinate
// columns match case-insensitively; every column, coordinates included, is
// kept in the point's Attrs. Blank rows are skipped.
type table struct {
	name   string
	opts   Options
	header []string
	xIdx   int
	yIdx   int
	ds     model.Dataset
}

func newTable(name string, header []string, opts Options) (*table, error) {
	opts = opts.withDefaults()
	t := &table{name: name, opts: opts, header: header, xIdx: -1, yIdx: -1}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if t.xIdx < 0 && strings.EqualFold(h, opts.XColumn) {
			t.xIdx = i
		}
		if t.yIdx < 0 && strings.EqualFold(h, opts.YColumn) {
			t.yIdx = i
		}
	}
	if t.xIdx < 0 || t.yIdx < 0 {
		return nil, model.DataError(eris.Errorf("points: %s has no %q and %q columns (found %s)",
			name, opts.XColumn, opts.YColumn, strings.Join(header, ", ")))
	}
	t.ds = model.Dataset{Name: name, Columns: header}
	return t, nil
}

// add appends a data row; row is the 1-based position among data rows.
func (t *table) add(row int, cells []string) error {
	if blank(cells) {
		return nil
	}
	x, err := coord(cells, t.xIdx)
	if err != nil {
		return model.DataError(eris.Wrapf(err, "points: %s row %d column %q", t.name, row, t.header[t.xIdx]))
	}
	y, err := coord(cells, t.yIdx)
	if err != nil {
		return model.DataError(eris.Wrapf(err, "points: %s row %d column %q", t.name, row, t.header[t.yIdx]))
	}

	attrs := make(map[string]string, len(t.header))
	for i, col := range t.header {
		if i < len(cells) {
			attrs[col] = cells[i]
		} else {
			attrs[col] = ""
		}
	}
	t.ds.Points = append(t.ds.Points, model.Point{X: x, Y: y, Row: row, Attrs: attrs})
	return nil
}

func (t *table) dataset() (model.Dataset, error) {
	if len(t.ds.Points) == 0 {
		return model.Dataset{}, model.DataError(eris.Errorf("points: %s has no data rows", t.name))
	}
	zap.L().Debug("points: table loaded",
		zap.String("name", t.name),
		zap.Int("points", len(t.ds.Points)),
		zap.Int("columns", len(t.header)),
	)
	return t.ds, nil
}

func coord(cells []string, idx int) (float64, error) {
	if idx >= len(cells) {
		return 0, eris.New("missing value")
	}
	s := strings.TrimSpace(cells[idx])
	if s == "" {
		return 0, eris.New("missing value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("non-numeric value %q", s)
	}
	if !finite(v) {
		return 0, eris.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

package points

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/unitmap/internal/model"
)

// LoadShapefile loads a point shapefile. Geometry supplies the coordinates;
// DBF attributes pass through as columns, followed by the X and Y columns
// when the table does not already carry them.
func LoadShapefile(path string, opts Options) (model.Dataset, error) {
	opts = opts.withDefaults()

	reader, err := shp.Open(path)
	if err != nil {
		return model.Dataset{}, model.DataError(eris.Wrapf(err, "points: open shapefile %s", path))
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	columns := make([]string, 0, len(fields)+2)
	for _, f := range fields {
		columns = append(columns, strings.TrimRight(f.String(), "\x00"))
	}
	xCol, yCol := opts.XColumn, opts.YColumn
	if !hasColumn(columns, xCol) {
		columns = append(columns, xCol)
	}
	if !hasColumn(columns, yCol) {
		columns = append(columns, yCol)
	}

	name := filepath.Base(path)
	ds := model.Dataset{Name: name, Columns: columns}
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()
		x, y, ok := pointOf(shape)
		if !ok {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(columns))
		for i := range fields {
			attrs[columns[i]] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		attrs[xCol] = strconv.FormatFloat(x, 'f', -1, 64)
		attrs[yCol] = strconv.FormatFloat(y, 'f', -1, 64)

		ds.Points = append(ds.Points, model.Point{X: x, Y: y, Row: n + 1, Attrs: attrs})
	}

	if skipped > 0 {
		zap.L().Debug("points: skipped non-point shapes",
			zap.String("name", name),
			zap.Int("skipped", skipped),
		)
	}
	if len(ds.Points) == 0 {
		return model.Dataset{}, model.DataError(eris.Errorf("points: %s has no point records", name))
	}
	return ds, nil
}

func pointOf(s shp.Shape) (x, y float64, ok bool) {
	switch p := s.(type) {
	case *shp.Point:
		x, y = p.X, p.Y
	case *shp.PointZ:
		x, y = p.X, p.Y
	case *shp.PointM:
		x, y = p.X, p.Y
	default:
		return 0, 0, false
	}
	return x, y, finite(x) && finite(y)
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

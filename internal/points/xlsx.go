package points

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/unitmap/internal/model"
)

// LoadXLSX loads a point table from a workbook file. The first row of the
// sheet is the header.
func LoadXLSX(path string, opts Options) (model.Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return model.Dataset{}, model.DataError(eris.Wrapf(err, "points: open workbook %s", path))
	}
	return readWorkbook(filepath.Base(path), f, opts)
}

// ReadXLSX loads a point table from workbook bytes.
func ReadXLSX(name string, data []byte, opts Options) (model.Dataset, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return model.Dataset{}, model.DataError(eris.Wrapf(err, "points: open workbook %s", name))
	}
	return readWorkbook(name, f, opts)
}

func readWorkbook(name string, f *xlsx.File, opts Options) (model.Dataset, error) {
	sheet, err := getSheet(f, opts.Sheet)
	if err != nil {
		return model.Dataset{}, model.DataError(err)
	}

	var t *table
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := rowToStrings(row)
		if t == nil {
			if blank(cells) {
				continue
			}
			if t, err = newTable(name, cells, opts); err != nil {
				return model.Dataset{}, err
			}
			continue
		}
		if err := t.add(i, cells); err != nil {
			return model.Dataset{}, err
		}
	}
	if t == nil {
		return model.Dataset{}, model.DataError(eris.Errorf("points: sheet %q of %s is empty", sheet.Name, name))
	}
	return t.dataset()
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

package points

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
	TrimSpace bool
}

// StreamCSV reads CSV records and sends them to a channel. Rows may have
// varying field counts and quotes are parsed leniently. The caller must
// drain the row channel; both channels close when reading stops.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV loads a point table from CSV. The first record is the header; a
// UTF-8 byte order mark is ignored.
func ReadCSV(ctx context.Context, name string, r io.Reader, opts Options) (model.Dataset, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{TrimSpace: true})

	var t *table
	row := 0
	for record := range rowCh {
		if t == nil {
			var err error
			if t, err = newTable(name, record, opts); err != nil {
				return model.Dataset{}, err
			}
			continue
		}
		row++
		if err := t.add(row, record); err != nil {
			return model.Dataset{}, err
		}
	}
	if err := <-errCh; err != nil {
		if ctx.Err() != nil {
			return model.Dataset{}, err
		}
		return model.Dataset{}, model.DataError(eris.Wrapf(err, "points: %s", name))
	}
	if t == nil {
		return model.Dataset{}, model.DataError(eris.Errorf("points: %s is empty", name))
	}
	return t.dataset()
}

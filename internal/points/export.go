package points

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/model"
	"github.com/sells-group/unitmap/internal/pipeline"
)

// LabelColumns are appended to the source columns on export.
var LabelColumns = []string{"group_id", "group_size", "category", "polygon_id"}

// WriteLabels writes labelled points as CSV: the dataset's columns followed
// by LabelColumns, one row per retained point.
func WriteLabels(w io.Writer, columns []string, labels []pipeline.Label) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(columns)+len(LabelColumns))
	header = append(header, columns...)
	header = append(header, LabelColumns...)
	if err := cw.Write(header); err != nil {
		return model.SerializationError(eris.Wrap(err, "points: write label header"))
	}

	for _, l := range labels {
		record := make([]string, 0, len(header))
		for _, col := range columns {
			record = append(record, l.Attrs[col])
		}
		record = append(record,
			strconv.Itoa(l.GroupID),
			strconv.Itoa(l.GroupSize),
			string(l.Category),
			strconv.Itoa(l.PolygonID),
		)
		if err := cw.Write(record); err != nil {
			return model.SerializationError(eris.Wrap(err, "points: write label row"))
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return model.SerializationError(eris.Wrap(err, "points: flush labels"))
	}
	return nil
}

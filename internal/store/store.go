// Package store persists analysis runs: the run summary, its retained points
// and boundary polygons, and the annotated drawing.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/model"
	"github.com/sells-group/unitmap/internal/pipeline"
)

// ErrNotFound is returned, wrapped, when a run does not exist.
var ErrNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	DrawingName string `json:"drawing_name,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// DefaultListLimit caps ListRuns when the filter sets no limit.
const DefaultListLimit = 100

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// RunRecord is everything stored for one run.
type RunRecord struct {
	Run      model.Run
	Drawing  []byte
	Points   []model.RunPoint
	Polygons []model.RunPolygon
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	GetDrawing(ctx context.Context, id string) ([]byte, error)
	GetRunPoints(ctx context.Context, id string) ([]model.RunPoint, error)
	GetRunPolygons(ctx context.Context, id string) ([]model.RunPolygon, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NewRecord builds the stored form of an analysis result.
func NewRecord(id string, res *pipeline.Result, createdAt time.Time) (*RunRecord, error) {
	rec := &RunRecord{
		Run:     res.Record(id, createdAt.UTC()),
		Drawing: res.Drawing,
	}

	for _, l := range res.Labels() {
		rec.Points = append(rec.Points, model.RunPoint{
			Index:     l.Index,
			Row:       l.Row,
			X:         l.X,
			Y:         l.Y,
			GroupID:   l.GroupID,
			GroupSize: l.GroupSize,
			Category:  l.Category,
			PolygonID: l.PolygonID,
		})
	}

	for _, p := range res.Polygons {
		wkb, err := p.WKB(0)
		if err != nil {
			return nil, eris.Wrapf(err, "store: encode polygon %d", p.ID)
		}
		rec.Polygons = append(rec.Polygons, model.RunPolygon{
			ID:       p.ID,
			Handle:   p.Handle,
			Layer:    p.Layer,
			Area:     p.Area(),
			Vertices: p.NumVertices(),
			WKB:      wkb,
		})
	}
	return rec, nil
}

// Open returns the store for driver ("sqlite" or "postgres") and runs its
// migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "sqlite":
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

var pointColumns = []string{"run_id", "idx", "row_num", "x", "y", "group_id", "group_size", "category", "polygon_id"}

var polygonColumns = []string{"run_id", "polygon_id", "handle", "layer", "area", "vertices", "wkb"}

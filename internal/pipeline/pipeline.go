// Package pipeline runs a unit analysis end to end: parse the survey drawing,
// join points to boundary polygons, cluster retained points into structures,
// classify and total them, and annotate the drawing.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/unitmap/internal/annotate"
	"github.com/sells-group/unitmap/internal/cluster"
	"github.com/sells-group/unitmap/internal/dxf"
	"github.com/sells-group/unitmap/internal/geo"
	"github.com/sells-group/unitmap/internal/model"
)

// Input is one analysis request.
type Input struct {
	DrawingName string
	Drawing     []byte
	Points      model.Dataset
}

// Result is the outcome of a successful analysis.
type Result struct {
	DrawingName string
	PointsName  string
	Params      model.RunParams
	Stats       model.CategoryStats
	// Drawing is the annotated DXF. With no retained points it is the input
	// drawing unchanged.
	Drawing     []byte
	InputPoints int
	Retained    []model.RetainedPoint
	// Groups index Retained; Categories is indexed by group ID.
	Groups     []cluster.Group
	Categories []model.Category
	Polygons   []*geo.Polygon
	Duration   time.Duration
}

// Analyzer runs analyses with a fixed configuration. It is immutable and safe
// for concurrent use.
type Analyzer struct {
	cfg Config
}

// New validates cfg and returns an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Overlap == "" {
		cfg.Overlap = geo.OverlapFirst
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg}, nil
}

// Config returns the analyzer's configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Run executes every stage in order and stops at the first failure, returned
// as a *model.StageError. Cancellation is returned unkinded, wrapping the
// context's error. No partial result is returned on error.
func (a *Analyzer) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	log := zap.L().With(
		zap.String("drawing", in.DrawingName),
		zap.String("points", in.Points.Name),
	)

	if in.Points.Len() == 0 {
		return nil, model.NewStageError(model.StageLoad, model.ErrData,
			model.DataError(eris.New("pipeline: point set is empty")))
	}

	// Parse.
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled before parse")
	}
	doc, err := dxf.Parse(in.Drawing)
	if err != nil {
		return nil, stageFailure(model.StageParse, model.ErrParse, err)
	}
	polygons, err := geo.PolygonsFromDrawing(doc, a.cfg.Layers)
	if err != nil {
		return nil, stageFailure(model.StageParse, model.ErrParse, err)
	}
	log.Debug("pipeline: drawing parsed",
		zap.String("version", doc.Version()),
		zap.Int("polygons", len(polygons)),
	)

	// Join.
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled before join")
	}
	retained := geo.Join(in.Points.Points, polygons, a.cfg.Overlap)
	log.Debug("pipeline: points joined",
		zap.Int("input", in.Points.Len()),
		zap.Int("retained", len(retained)),
		zap.Int("dropped", in.Points.Len()-len(retained)),
	)

	res := &Result{
		DrawingName: in.DrawingName,
		PointsName:  in.Points.Name,
		Params:      a.cfg.Params(),
		InputPoints: in.Points.Len(),
		Retained:    retained,
		Polygons:    polygons,
	}

	if len(retained) == 0 {
		res.Drawing = append([]byte(nil), in.Drawing...)
		res.Duration = time.Since(start)
		log.Info("pipeline: no points inside boundary polygons")
		return res, nil
	}

	// Cluster.
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled before cluster")
	}
	coords := make([]cluster.Coord, len(retained))
	for i, rp := range retained {
		coords[i] = cluster.Coord{X: rp.Point.X, Y: rp.Point.Y}
	}
	clusters, err := cluster.Cluster(ctx, coords, cluster.Options{Radius: a.cfg.Radius, Workers: a.cfg.Workers})
	if err != nil {
		return nil, stageFailure(model.StageCluster, model.ErrData, err)
	}
	res.Groups = clusters.Groups

	// Classify.
	res.Categories = Classify(clusters.Groups, a.cfg.Thresholds)
	res.Stats = Aggregate(clusters.Groups, a.cfg.Thresholds)

	// Annotate.
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled before annotate")
	}
	markers := make([]annotate.Marker, len(retained))
	for i, rp := range retained {
		markers[i] = annotate.Marker{
			X:        rp.Point.X,
			Y:        rp.Point.Y,
			Category: res.Categories[clusters.Assignment[i]],
		}
	}
	drawing, err := annotate.Render(doc, markers, a.cfg.Style)
	if err != nil {
		return nil, stageFailure(model.StageAnnotate, model.ErrSerialization, err)
	}
	res.Drawing = drawing
	res.Duration = time.Since(start)

	log.Info("pipeline: analysis complete",
		zap.Int("retained", len(retained)),
		zap.Int("structures", res.Stats.TotalStructures),
		zap.Int("single_unit", res.Stats.SingleUnitCount),
		zap.Int("low_rise", res.Stats.LowRiseCount),
		zap.Int("high_rise", res.Stats.HighRiseCount),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// stageFailure attaches stage and kind to err unless err is a context
// cancellation, which carries no kind.
func stageFailure(stage model.Stage, fallback model.ErrorKind, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(err, "pipeline: cancelled during %s", stage)
	}
	return model.NewStageError(stage, fallback, err)
}

// Label is one retained point with its structure assignment.
type Label struct {
	model.Point
	Index     int            `json:"index"`
	GroupID   int            `json:"group_id"`
	GroupSize int            `json:"group_size"`
	Category  model.Category `json:"category"`
	PolygonID int            `json:"polygon_id"`
}

// Labels returns the retained points in input order, each tagged with its
// group and category.
func (r *Result) Labels() []Label {
	assignment := make([]int, len(r.Retained))
	for _, g := range r.Groups {
		for _, m := range g.Members {
			assignment[m] = g.ID
		}
	}
	out := make([]Label, len(r.Retained))
	for i, rp := range r.Retained {
		g := r.Groups[assignment[i]]
		out[i] = Label{
			Point:     rp.Point,
			Index:     rp.Index,
			GroupID:   g.ID,
			GroupSize: g.Count(),
			Category:  r.Categories[g.ID],
			PolygonID: rp.PolygonID,
		}
	}
	return out
}

// Record summarizes the result as a run record.
func (r *Result) Record(id string, createdAt time.Time) model.Run {
	return model.Run{
		ID:          id,
		DrawingName: r.DrawingName,
		PointsName:  r.PointsName,
		Params:      r.Params,
		Stats:       r.Stats,
		InputPoints: r.InputPoints,
		Retained:    len(r.Retained),
		Polygons:    len(r.Polygons),
		DurationMS:  r.Duration.Milliseconds(),
		CreatedAt:   createdAt,
	}
}

package model

import "time"

// RunParams records the analysis parameters a run was produced with.
type RunParams struct {
	Radius      float64 `json:"radius" yaml:"radius"`
	LowRiseMin  int     `json:"low_rise_min" yaml:"low_rise_min"`
	HighRiseMin int     `json:"high_rise_min" yaml:"high_rise_min"`
	Overlap     string  `json:"overlap" yaml:"overlap"`
}

// Run is a stored analysis record. The annotated drawing is stored alongside
// it and fetched separately.
type Run struct {
	ID          string        `json:"id" yaml:"id"`
	DrawingName string        `json:"drawing_name" yaml:"drawing_name"`
	PointsName  string        `json:"points_name" yaml:"points_name"`
	Params      RunParams     `json:"params" yaml:"params"`
	Stats       CategoryStats `json:"stats" yaml:"stats"`
	InputPoints int           `json:"input_points" yaml:"input_points"`
	Retained    int           `json:"retained" yaml:"retained"`
	Polygons    int           `json:"polygons" yaml:"polygons"`
	DurationMS  int64         `json:"duration_ms" yaml:"duration_ms"`
	CreatedAt   time.Time     `json:"created_at" yaml:"created_at"`
}

// RunPoint is a retained point as stored with a run.
type RunPoint struct {
	Index     int      `json:"index"`
	Row       int      `json:"row"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	GroupID   int      `json:"group_id"`
	GroupSize int      `json:"group_size"`
	Category  Category `json:"category"`
	PolygonID int      `json:"polygon_id"`
}

// RunPolygon is a boundary polygon as stored with a run. WKB holds the
// outline as little-endian EWKB.
type RunPolygon struct {
	ID       int     `json:"id"`
	Handle   string  `json:"handle"`
	Layer    string  `json:"layer"`
	Area     float64 `json:"area"`
	Vertices int     `json:"vertices"`
	WKB      []byte  `json:"-"`
}

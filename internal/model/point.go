// Package model holds the domain types shared by the analysis stages.
package model

// Point is a candidate unit location in the drawing's planar coordinate system.
type Point struct {
	X     float64           `json:"x"`
	Y     float64           `json:"y"`
	Row   int               `json:"row"`             // 1-based data row in the source table
	Attrs map[string]string `json:"attrs,omitempty"` // pass-through source columns
}

// Dataset is a loaded point table. Columns keeps the source column order so
// attributes can be re-attached on export.
type Dataset struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Points  []Point  `json:"points"`
}

// Len returns the number of points in the dataset.
func (d Dataset) Len() int {
	return len(d.Points)
}

// RetainedPoint is a point known to lie inside at least one boundary polygon.
type RetainedPoint struct {
	Index      int   `json:"index"` // position in the input dataset
	Point      Point `json:"point"`
	PolygonID  int   `json:"polygon_id"`  // first containing polygon in document order
	PolygonIDs []int `json:"polygon_ids"` // every containing polygon
}

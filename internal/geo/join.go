package geo

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/model"
)

// Overlap selects the primary polygon of a point contained by several
// overlapping polygons. Every match is still recorded in PolygonIDs and the
// point is retained once.
type Overlap string

const (
	// OverlapFirst picks the first containing polygon in drawing order.
	OverlapFirst Overlap = "first"
	// OverlapSmallest picks the containing polygon with the smallest area,
	// which favours a lot outline over an enclosing site boundary.
	OverlapSmallest Overlap = "smallest"
)

// ParseOverlap validates an overlap policy name. Empty selects OverlapFirst.
func ParseOverlap(s string) (Overlap, error) {
	switch Overlap(s) {
	case "", OverlapFirst:
		return OverlapFirst, nil
	case OverlapSmallest:
		return OverlapSmallest, nil
	}
	return "", eris.Errorf("geo: unknown overlap policy %q (want first or smallest)", s)
}

// Join returns the points that lie inside or on the boundary of at least one
// polygon, in input order. Points outside every polygon are dropped.
func Join(points []model.Point, polygons []*Polygon, policy Overlap) []model.RetainedPoint {
	var retained []model.RetainedPoint
	for i, pt := range points {
		var hits []int
		for _, poly := range polygons {
			if poly.Contains(pt.X, pt.Y) {
				hits = append(hits, poly.ID)
			}
		}
		if len(hits) == 0 {
			continue
		}
		retained = append(retained, model.RetainedPoint{
			Index:      i,
			Point:      pt,
			PolygonID:  primary(hits, polygons, policy),
			PolygonIDs: hits,
		})
	}
	return retained
}

func primary(hits []int, polygons []*Polygon, policy Overlap) int {
	if policy != OverlapSmallest || len(hits) == 1 {
		return hits[0]
	}
	byID := make(map[int]*Polygon, len(polygons))
	for _, p := range polygons {
		byID[p.ID] = p
	}
	best := hits[0]
	bestArea := byID[best].Area()
	for _, id := range hits[1:] {
		if a := byID[id].Area(); a < bestArea {
			best, bestArea = id, a
		}
	}
	return best
}

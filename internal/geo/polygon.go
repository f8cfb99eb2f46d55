// Package geo provides boundary polygons, the point-in-polygon join, and
// occupancy classification for unit clusters.
package geo

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	"go.uber.org/zap"

	"github.com/sells-group/unitmap/internal/dxf"
	"github.com/sells-group/unitmap/internal/model"
)

// Polygon is a boundary outline taken from a closed drawing polyline.
type Polygon struct {
	ID     int    `json:"id"`
	Handle string `json:"handle"`
	Layer  string `json:"layer"`

	poly *geom.Polygon
}

// NewPolygon builds a polygon from an outline. Repeated consecutive vertices
// and an explicit closing vertex are dropped; fewer than three remaining
// vertices is an error.
func NewPolygon(id int, handle, layer string, vertices []dxf.Vertex) (*Polygon, error) {
	ring := make([]float64, 0, 2*len(vertices)+2)
	for i, v := range vertices {
		if i > 0 && v == vertices[i-1] {
			continue
		}
		ring = append(ring, v.X, v.Y)
	}
	n := len(ring) / 2
	if n > 1 && ring[0] == ring[2*n-2] && ring[1] == ring[2*n-1] {
		ring = ring[:2*n-2]
		n--
	}
	if n < 3 {
		return nil, eris.Errorf("geo: polygon %d (%s) has %d distinct vertices, need at least 3", id, handle, n)
	}
	// go-geom rings are explicitly closed.
	ring = append(ring, ring[0], ring[1])

	return &Polygon{
		ID:     id,
		Handle: handle,
		Layer:  layer,
		poly:   geom.NewPolygonFlat(geom.XY, ring, []int{len(ring)}),
	}, nil
}

// Locate reports whether (x, y) is in the interior, on the boundary, or in
// the exterior of the polygon.
func (p *Polygon) Locate(x, y float64) location.Type {
	b := p.poly.Bounds()
	if x < b.Min(0) || x > b.Max(0) || y < b.Min(1) || y > b.Max(1) {
		return location.Exterior
	}
	return xy.LocatePointInRing(geom.XY, geom.Coord{x, y}, p.poly.LinearRing(0).FlatCoords())
}

// Contains reports whether (x, y) lies inside the polygon or on its boundary.
func (p *Polygon) Contains(x, y float64) bool {
	return p.Locate(x, y) != location.Exterior
}

// Area returns the polygon's planar area.
func (p *Polygon) Area() float64 {
	return p.poly.Area()
}

// NumVertices returns the number of distinct vertices.
func (p *Polygon) NumVertices() int {
	return len(p.poly.FlatCoords())/2 - 1
}

// Bounds returns the polygon's bounding box as minX, minY, maxX, maxY.
func (p *Polygon) Bounds() (minX, minY, maxX, maxY float64) {
	b := p.poly.Bounds()
	return b.Min(0), b.Min(1), b.Max(0), b.Max(1)
}

// Vertices returns the distinct vertices in drawing order.
func (p *Polygon) Vertices() []dxf.Vertex {
	flat := p.poly.FlatCoords()
	out := make([]dxf.Vertex, 0, len(flat)/2-1)
	for i := 0; i+3 < len(flat); i += 2 {
		out = append(out, dxf.Vertex{X: flat[i], Y: flat[i+1]})
	}
	return out
}

// WKB encodes the polygon as EWKB with the given SRID (0 for none).
func (p *Polygon) WKB(srid int) ([]byte, error) {
	g := geom.NewPolygonFlat(geom.XY, p.poly.FlatCoords(), p.poly.Ends())
	if srid > 0 {
		g.SetSRID(srid)
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode WKB")
	}
	return data, nil
}

// PolygonsFromDrawing converts the drawing's closed polylines into polygons,
// keeping document order. When layers is non-empty only polylines on those
// layers (case-insensitive) are used. Degenerate outlines are skipped.
func PolygonsFromDrawing(doc *dxf.Document, layers []string) ([]*Polygon, error) {
	pls, err := doc.ClosedPolylines()
	if err != nil {
		return nil, err
	}

	allow := make(map[string]bool, len(layers))
	for _, l := range layers {
		allow[strings.ToUpper(strings.TrimSpace(l))] = true
	}

	polygons := make([]*Polygon, 0, len(pls))
	var skipped int
	for _, pl := range pls {
		if len(allow) > 0 && !allow[strings.ToUpper(pl.Layer)] {
			continue
		}
		poly, err := NewPolygon(len(polygons), pl.Handle, pl.Layer, pl.Vertices)
		if err != nil {
			skipped++
			zap.L().Debug("geo: skipping degenerate polyline",
				zap.String("handle", pl.Handle),
				zap.String("layer", pl.Layer),
				zap.Error(err),
			)
			continue
		}
		polygons = append(polygons, poly)
	}

	if len(polygons) == 0 {
		return nil, model.DataError(eris.Errorf("geo: drawing has no usable closed polylines (%d closed, %d degenerate)", len(pls), skipped))
	}
	return polygons, nil
}

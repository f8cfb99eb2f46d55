package dxf

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/unitmap/internal/model"
)

// Polyline flag bits (group 70).
const (
	flagClosed   = 1
	flagMesh     = 16
	flagPolyface = 64

	vertexSplineFrame = 16
)

// Vertex is a 2-D polyline vertex. Z is discarded.
type Vertex struct {
	X, Y float64
}

// Polyline is a closed polyline entity from model space.
type Polyline struct {
	Type     string // LWPOLYLINE or POLYLINE
	Handle   string
	Layer    string // decoded to UTF-8
	Vertices []Vertex
}

// ClosedPolylines returns every closed LWPOLYLINE and POLYLINE in model space,
// in document order. Paper space entities and polygon/polyface meshes are
// skipped. Vertex lists are returned as stored; callers normalize them.
func (d *Document) ClosedPolylines() ([]Polyline, error) {
	entities := d.Entities()
	dec := newLayerDecoder(d.header)

	var out []Polyline
	for i := 0; i < len(entities); i++ {
		e := entities[i]
		switch e.Type {
		case "LWPOLYLINE":
			pl, closed, err := readLWPolyline(e)
			if err != nil {
				return nil, err
			}
			if closed && !paperSpace(e) {
				pl.Layer = dec.decode(pl.Layer)
				out = append(out, pl)
			}
		case "POLYLINE":
			var vertices []Entity
			j := i + 1
			for ; j < len(entities) && entities[j].Type == "VERTEX"; j++ {
				vertices = append(vertices, entities[j])
			}
			if j < len(entities) && entities[j].Type == "SEQEND" {
				j++
			}
			pl, closed, err := readPolyline(e, vertices)
			if err != nil {
				return nil, err
			}
			if closed && !paperSpace(e) {
				pl.Layer = dec.decode(pl.Layer)
				out = append(out, pl)
			}
			i = j - 1
		}
	}
	return out, nil
}

func paperSpace(e Entity) bool {
	return e.Value(67) == "1"
}

func readLWPolyline(e Entity) (Polyline, bool, error) {
	pl := Polyline{Type: e.Type}
	var flags int
	var haveX bool
	ext := extrusion{z: 1}

	for _, p := range e.Pairs[1:] {
		var err error
		switch p.Code {
		case 5:
			pl.Handle = p.Value
		case 8:
			pl.Layer = p.Value
		case 70:
			flags, err = p.Int()
		case 10:
			var x float64
			x, err = p.Float()
			pl.Vertices = append(pl.Vertices, Vertex{X: x})
			haveX = true
		case 20:
			if !haveX {
				return pl, false, parseErrorf("dxf: LWPOLYLINE %s: y coordinate without x", pl.Handle)
			}
			pl.Vertices[len(pl.Vertices)-1].Y, err = p.Float()
			haveX = false
		case 210:
			ext.x, err = p.Float()
		case 220:
			ext.y, err = p.Float()
		case 230:
			ext.z, err = p.Float()
		}
		if err != nil {
			return pl, false, model.ParseError(eris.Wrapf(err, "dxf: LWPOLYLINE %s", pl.Handle))
		}
	}
	if haveX {
		return pl, false, parseErrorf("dxf: LWPOLYLINE %s: x coordinate without y", pl.Handle)
	}
	ext.apply(pl.Vertices, pl.Handle)
	return pl, flags&flagClosed != 0, nil
}

func readPolyline(e Entity, vertices []Entity) (Polyline, bool, error) {
	pl := Polyline{Type: e.Type, Handle: e.Value(5), Layer: e.Value(8)}
	flags := 0
	if v := e.Value(70); v != "" {
		f, err := Pair{Code: 70, Value: v}.Int()
		if err != nil {
			return pl, false, model.ParseError(eris.Wrapf(err, "dxf: POLYLINE %s", pl.Handle))
		}
		flags = f
	}
	if flags&(flagMesh|flagPolyface) != 0 {
		return pl, false, nil
	}

	for _, v := range vertices {
		var vx Vertex
		var vflags int
		var err error
		for _, p := range v.Pairs[1:] {
			switch p.Code {
			case 10:
				vx.X, err = p.Float()
			case 20:
				vx.Y, err = p.Float()
			case 70:
				vflags, err = p.Int()
			}
			if err != nil {
				return pl, false, model.ParseError(eris.Wrapf(err, "dxf: POLYLINE %s vertex", pl.Handle))
			}
		}
		if vflags&vertexSplineFrame != 0 {
			continue
		}
		pl.Vertices = append(pl.Vertices, vx)
	}
	return pl, flags&flagClosed != 0, nil
}

// extrusion is an entity's OCS normal. Only the mirrored case (0,0,-1) is
// converted; other normals are rare for survey boundaries and are used as is.
type extrusion struct {
	x, y, z float64
}

func (e extrusion) apply(vs []Vertex, handle string) {
	switch {
	case e.x == 0 && e.y == 0 && e.z > 0:
		return
	case e.x == 0 && e.y == 0 && e.z < 0:
		for i := range vs {
			vs[i].X = -vs[i].X
		}
	default:
		zap.L().Debug("dxf: unsupported extrusion direction, using OCS coordinates",
			zap.String("handle", handle),
			zap.Float64("x", e.x), zap.Float64("y", e.y), zap.Float64("z", e.z),
		)
	}
}

package dxf

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/model"
)

// Circle is a marker entity to append to model space.
type Circle struct {
	X, Y   float64
	Radius float64
	Color  int // AutoCAD Color Index
	Layer  string
}

// AppendCircles adds circles to the end of the ENTITIES section, creating the
// section before EOF if the drawing has none. Handles are allocated from
// $HANDSEED when the drawing tracks handles. Non-finite values are rejected as
// a SerializationError and leave the document unchanged.
//
// AppendCircles mutates d; annotate a Clone to keep the parsed original intact.
func (d *Document) AppendCircles(circles []Circle) error {
	if len(circles) == 0 {
		return nil
	}
	for i, c := range circles {
		if !finite(c.X) || !finite(c.Y) || !finite(c.Radius) || c.Radius <= 0 {
			return model.SerializationError(eris.Errorf("dxf: circle %d has invalid geometry (x=%v y=%v r=%v)", i, c.X, c.Y, c.Radius))
		}
		if c.Color < 0 || c.Color > 256 {
			return model.SerializationError(eris.Errorf("dxf: circle %d has invalid color %d", i, c.Color))
		}
	}

	next := d.header.handseed
	var block []Pair
	for _, c := range circles {
		block = append(block, d.circlePairs(c, &next)...)
	}

	if d.header.hasHandseed {
		seed := d.pairs[d.header.handseedIdx]
		d.pairs[d.header.handseedIdx] = NewPair(seed.Code, formatHandle(next))
	}

	s, ok := d.section("ENTITIES")
	if ok {
		d.insert(s.end, block)
	} else {
		eof := len(d.pairs) - 1
		wrapped := make([]Pair, 0, len(block)+3)
		wrapped = append(wrapped, NewPair(0, "SECTION"), NewPair(2, "ENTITIES"))
		wrapped = append(wrapped, block...)
		wrapped = append(wrapped, NewPair(0, "ENDSEC"))
		d.insert(eof, wrapped)
	}

	return d.reindex()
}

func (d *Document) circlePairs(c Circle, next *uint64) []Pair {
	layer := c.Layer
	if layer == "" {
		layer = "0"
	}
	pairs := []Pair{NewPair(0, "CIRCLE")}
	if d.header.hasHandseed {
		pairs = append(pairs, NewPair(5, formatHandle(*next)))
		*next++
		if d.header.modelSpaceOwner != "" {
			pairs = append(pairs, NewPair(330, d.header.modelSpaceOwner))
		}
	}
	if d.header.hasSubclassMarkers() {
		pairs = append(pairs, NewPair(100, "AcDbEntity"))
	}
	pairs = append(pairs,
		NewPair(8, layer),
		NewPair(62, strconv.Itoa(c.Color)),
	)
	if d.header.hasSubclassMarkers() {
		pairs = append(pairs, NewPair(100, "AcDbCircle"))
	}
	pairs = append(pairs,
		NewPair(10, formatFloat(c.X)),
		NewPair(20, formatFloat(c.Y)),
		NewPair(30, "0.0"),
		NewPair(40, formatFloat(c.Radius)),
	)
	return pairs
}

// insert places pairs before index at.
func (d *Document) insert(at int, pairs []Pair) {
	out := make([]Pair, 0, len(d.pairs)+len(pairs))
	out = append(out, d.pairs[:at]...)
	out = append(out, pairs...)
	out = append(out, d.pairs[at:]...)
	d.pairs = out
}

func (d *Document) reindex() error {
	d.sections = nil
	if err := d.index(); err != nil {
		return model.SerializationError(eris.Wrap(err, "dxf: reindex after insert"))
	}
	h := readHeader(d)
	d.header = h
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatHandle(h uint64) string {
	return strings.ToUpper(strconv.FormatUint(h, 16))
}

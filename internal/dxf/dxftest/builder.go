// Package dxftest builds small ASCII DXF drawings for tests.
package dxftest

import (
	"strconv"
	"strings"
)

// Builder assembles a DXF drawing. The zero value is not usable; call New or
// NewR12.
type Builder struct {
	version    string // empty for a headerless R12 drawing
	codepage   string
	handles    bool
	crlf       bool
	nextHandle uint64
	entities   [][2]string
}

// ModelSpaceHandle is the block record handle New uses for *Model_Space.
const ModelSpaceHandle = "1F"

// New returns a builder for an AutoCAD 2000 (AC1015) drawing with handles,
// a BLOCK_RECORD table and subclass markers.
func New() *Builder {
	return &Builder{version: "AC1015", codepage: "ANSI_1252", handles: true, nextHandle: 0x100}
}

// NewR12 returns a builder for a minimal drawing with only an ENTITIES
// section, as written by many survey and GIS exporters.
func NewR12() *Builder {
	return &Builder{}
}

// Codepage sets $DWGCODEPAGE.
func (b *Builder) Codepage(cp string) *Builder {
	b.codepage = cp
	return b
}

// CRLF switches line endings to CRLF.
func (b *Builder) CRLF() *Builder {
	b.crlf = true
	return b
}

func (b *Builder) add(pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		b.entities = append(b.entities, [2]string{pairs[i], pairs[i+1]})
	}
}

func (b *Builder) start(kind, layer, subclass string) {
	b.add("0", kind)
	if b.handles {
		b.add("5", strings.ToUpper(strconv.FormatUint(b.nextHandle, 16)), "330", ModelSpaceHandle)
		b.nextHandle++
	}
	if b.version != "" {
		b.add("100", "AcDbEntity")
	}
	b.add("8", layer)
	if b.version != "" && subclass != "" {
		b.add("100", subclass)
	}
}

// LWPolyline appends a lightweight polyline.
func (b *Builder) LWPolyline(layer string, closed bool, pts ...[2]float64) *Builder {
	b.start("LWPOLYLINE", layer, "AcDbPolyline")
	flags := "0"
	if closed {
		flags = "1"
	}
	b.add("90", strconv.Itoa(len(pts)), "70", flags)
	for _, p := range pts {
		b.add("10", num(p[0]), "20", num(p[1]))
	}
	return b
}

// Polyline appends a legacy POLYLINE with VERTEX children and SEQEND.
func (b *Builder) Polyline(layer string, closed bool, pts ...[2]float64) *Builder {
	b.start("POLYLINE", layer, "AcDb2dPolyline")
	flags := "0"
	if closed {
		flags = "1"
	}
	b.add("66", "1", "10", "0.0", "20", "0.0", "30", "0.0", "70", flags)
	for _, p := range pts {
		b.start("VERTEX", layer, "AcDbVertex")
		b.add("10", num(p[0]), "20", num(p[1]), "30", "12.5")
	}
	b.start("SEQEND", layer, "")
	return b
}

// Square appends a closed LWPOLYLINE rectangle.
func (b *Builder) Square(layer string, minX, minY, maxX, maxY float64) *Builder {
	return b.LWPolyline(layer, true,
		[2]float64{minX, minY}, [2]float64{maxX, minY},
		[2]float64{maxX, maxY}, [2]float64{minX, maxY})
}

// Line appends a LINE entity.
func (b *Builder) Line(layer string, x1, y1, x2, y2 float64) *Builder {
	b.start("LINE", layer, "AcDbLine")
	b.add("10", num(x1), "20", num(y1), "30", "0.0", "11", num(x2), "21", num(y2), "31", "0.0")
	return b
}

// Text appends a TEXT entity.
func (b *Builder) Text(layer, value string, x, y float64) *Builder {
	b.start("TEXT", layer, "AcDbText")
	b.add("10", num(x), "20", num(y), "30", "0.0", "40", "2.5", "1", value)
	return b
}

// Raw appends literal code/value pairs.
func (b *Builder) Raw(pairs ...string) *Builder {
	b.add(pairs...)
	return b
}

// String renders the drawing.
func (b *Builder) String() string {
	var lines []string
	add := func(pairs ...string) {
		for i := 0; i+1 < len(pairs); i += 2 {
			code := pairs[i]
			if len(code) < 3 {
				code = strings.Repeat(" ", 3-len(code)) + code
			}
			lines = append(lines, code, pairs[i+1])
		}
	}

	add("999", "dxftest fixture")
	if b.version != "" {
		add("0", "SECTION", "2", "HEADER",
			"9", "$ACADVER", "1", b.version,
			"9", "$DWGCODEPAGE", "3", b.codepage)
		if b.handles {
			add("9", "$HANDSEED", "5", strings.ToUpper(strconv.FormatUint(b.nextHandle, 16)))
		}
		add("0", "ENDSEC")
		add("0", "SECTION", "2", "TABLES",
			"0", "TABLE", "2", "BLOCK_RECORD", "5", "1", "330", "0", "100", "AcDbSymbolTable", "70", "2",
			"0", "BLOCK_RECORD", "5", ModelSpaceHandle, "330", "1", "100", "AcDbSymbolTableRecord", "100", "AcDbBlockTableRecord", "2", "*Model_Space",
			"0", "BLOCK_RECORD", "5", "1B", "330", "1", "100", "AcDbSymbolTableRecord", "100", "AcDbBlockTableRecord", "2", "*Paper_Space",
			"0", "ENDTAB",
			"0", "ENDSEC")
	}
	add("0", "SECTION", "2", "ENTITIES")
	for _, p := range b.entities {
		add(p[0], p[1])
	}
	add("0", "ENDSEC", "0", "EOF")

	nl := "\n"
	if b.crlf {
		nl = "\r\n"
	}
	return strings.Join(lines, nl) + nl
}

// Bytes renders the drawing as bytes.
func (b *Builder) Bytes() []byte {
	return []byte(b.String())
}

func num(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

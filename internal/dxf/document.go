// Package dxf reads and writes ASCII DXF drawings as a lossless sequence of
// group-code pairs. Only the entities needed for boundary analysis are
// interpreted; everything else is carried through untouched on write.
package dxf

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/model"
)

var (
	utf8BOM        = []byte{0xEF, 0xBB, 0xBF}
	binarySentinel = []byte("AutoCAD Binary DXF")
)

// Pair is one DXF group: an integer code followed by a value line.
type Pair struct {
	Code  int
	Value string // trimmed value used for interpretation

	rawCode  string // original lines, empty for generated pairs
	rawValue string
	raw      bool
}

// NewPair builds a generated pair. Generated pairs are formatted on write.
func NewPair(code int, value string) Pair {
	return Pair{Code: code, Value: value}
}

// Float parses the pair value as a float.
func (p Pair) Float() (float64, error) {
	f, err := strconv.ParseFloat(p.Value, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "dxf: group %d: invalid number %q", p.Code, p.Value)
	}
	return f, nil
}

// Int parses the pair value as an integer.
func (p Pair) Int() (int, error) {
	n, err := strconv.Atoi(p.Value)
	if err != nil {
		return 0, eris.Wrapf(err, "dxf: group %d: invalid integer %q", p.Code, p.Value)
	}
	return n, nil
}

type section struct {
	name       string
	start, end int // indices of the SECTION and ENDSEC pairs
}

// Document is a parsed DXF drawing. A Document is never modified in place by
// this package's exported API: annotation works on a Clone.
type Document struct {
	pairs    []Pair
	sections []section

	newline      string
	bom          bool
	finalNewline bool
	trailer      []string // lines after the EOF pair

	header header
}

// Parse reads an ASCII DXF document. Any structural problem is reported as a
// model ParseError carrying the offending line number.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, parseErrorf("dxf: empty document")
	}
	if bytes.HasPrefix(data, binarySentinel) {
		return nil, parseErrorf("dxf: binary DXF is not supported")
	}

	doc := &Document{newline: "\n"}
	if bytes.HasPrefix(data, utf8BOM) {
		doc.bom = true
		data = data[len(utf8BOM):]
	}
	if bytes.Contains(data, []byte("\r\n")) {
		doc.newline = "\r\n"
	}

	lines := strings.Split(string(data), "\n")
	if lines[len(lines)-1] == "" {
		doc.finalNewline = true
		lines = lines[:len(lines)-1]
	}
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	sawEOF := false
	for i := 0; i < len(lines); i += 2 {
		if i+1 >= len(lines) {
			return nil, parseErrorf("dxf: line %d: group code without value", i+1)
		}
		code, err := strconv.Atoi(strings.TrimSpace(lines[i]))
		if err != nil {
			return nil, parseErrorf("dxf: line %d: invalid group code %q", i+1, truncate(lines[i], 32))
		}
		p := Pair{
			Code:     code,
			Value:    strings.TrimSpace(lines[i+1]),
			rawCode:  lines[i],
			rawValue: lines[i+1],
			raw:      true,
		}
		doc.pairs = append(doc.pairs, p)
		if code == 0 && p.Value == "EOF" {
			doc.trailer = lines[i+2:]
			sawEOF = true
			break
		}
	}
	if !sawEOF {
		return nil, parseErrorf("dxf: unexpected end of document: missing EOF marker")
	}

	if err := doc.index(); err != nil {
		return nil, err
	}
	doc.header = readHeader(doc)

	return doc, nil
}

// index validates section structure and records section spans.
func (d *Document) index() error {
	open := -1
	for i := 0; i < len(d.pairs); i++ {
		p := d.pairs[i]
		if p.Code == 999 {
			continue
		}
		if p.Code != 0 {
			if open < 0 {
				return parseErrorf("dxf: group %d outside of any section (pair %d)", p.Code, i+1)
			}
			continue
		}
		switch p.Value {
		case "SECTION":
			if open >= 0 {
				return parseErrorf("dxf: section %q is not closed before pair %d", d.sections[open].name, i+1)
			}
			if i+1 >= len(d.pairs) || d.pairs[i+1].Code != 2 {
				return parseErrorf("dxf: SECTION without name (pair %d)", i+1)
			}
			d.sections = append(d.sections, section{name: strings.ToUpper(d.pairs[i+1].Value), start: i, end: -1})
			open = len(d.sections) - 1
			i++
		case "ENDSEC":
			if open < 0 {
				return parseErrorf("dxf: ENDSEC without SECTION (pair %d)", i+1)
			}
			d.sections[open].end = i
			open = -1
		case "EOF":
			if open >= 0 {
				return parseErrorf("dxf: section %q is not closed before EOF", d.sections[open].name)
			}
		default:
			if open < 0 {
				return parseErrorf("dxf: %s outside of any section (pair %d)", p.Value, i+1)
			}
		}
	}
	if len(d.sections) == 0 {
		return parseErrorf("dxf: document has no sections")
	}
	return nil
}

// Pairs returns a copy of the document's group-code pairs.
func (d *Document) Pairs() []Pair {
	out := make([]Pair, len(d.pairs))
	copy(out, d.pairs)
	return out
}

// Len returns the number of group-code pairs in the document.
func (d *Document) Len() int {
	return len(d.pairs)
}

// Version returns the $ACADVER header value, or "" for headerless drawings.
func (d *Document) Version() string {
	return d.header.version
}

// Codepage returns the $DWGCODEPAGE header value.
func (d *Document) Codepage() string {
	return d.header.codepage
}

// SectionNames lists sections in document order.
func (d *Document) SectionNames() []string {
	names := make([]string, len(d.sections))
	for i, s := range d.sections {
		names[i] = s.name
	}
	return names
}

func (d *Document) section(name string) (section, bool) {
	for _, s := range d.sections {
		if s.name == name {
			return s, true
		}
	}
	return section{}, false
}

// Clone returns an independent copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	c.pairs = make([]Pair, len(d.pairs))
	copy(c.pairs, d.pairs)
	c.sections = make([]section, len(d.sections))
	copy(c.sections, d.sections)
	c.trailer = append([]string(nil), d.trailer...)
	return &c
}

func parseErrorf(format string, args ...any) error {
	return model.ParseError(eris.Errorf(format, args...))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package dxf

import (
	"strconv"
	"strings"
)

// header holds the few header variables the reader and writer depend on.
type header struct {
	version  string
	codepage string

	handseed    uint64
	hasHandseed bool
	handseedIdx int // pair index of the $HANDSEED value

	modelSpaceOwner string // handle of the *Model_Space block record
}

func readHeader(d *Document) header {
	var h header
	if s, ok := d.section("HEADER"); ok {
		for i := s.start + 2; i < s.end; i++ {
			if d.pairs[i].Code != 9 || i+1 >= s.end {
				continue
			}
			next := d.pairs[i+1]
			switch strings.ToUpper(d.pairs[i].Value) {
			case "$ACADVER":
				h.version = strings.ToUpper(next.Value)
			case "$DWGCODEPAGE":
				h.codepage = next.Value
			case "$HANDSEED":
				if seed, err := strconv.ParseUint(next.Value, 16, 64); err == nil && next.Code == 5 {
					h.handseed = seed
					h.hasHandseed = true
					h.handseedIdx = i + 1
				}
			}
		}
	}
	h.modelSpaceOwner = findModelSpaceRecord(d)
	return h
}

// findModelSpaceRecord returns the handle of the BLOCK_RECORD entry named
// *Model_Space, or "" if the drawing has no block record table.
func findModelSpaceRecord(d *Document) string {
	s, ok := d.section("TABLES")
	if !ok {
		return ""
	}
	for _, e := range d.entitiesIn(s) {
		if e.Type != "BLOCK_RECORD" {
			continue
		}
		var handle, name string
		for _, p := range e.Pairs[1:] {
			switch p.Code {
			case 5:
				if handle == "" {
					handle = p.Value
				}
			case 2:
				name = p.Value
			}
		}
		if strings.EqualFold(name, "*Model_Space") {
			return handle
		}
	}
	return ""
}

// hasSubclassMarkers reports whether the drawing version expects AcDb
// subclass markers on entities (R13 and later).
func (h header) hasSubclassMarkers() bool {
	return h.version != "" && h.version >= "AC1012"
}

// usesUTF8 reports whether string values are UTF-8 encoded (R2007 and later).
func (h header) usesUTF8() bool {
	return h.version != "" && h.version >= "AC1021"
}

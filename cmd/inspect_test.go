package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/unitmap/internal/dxf"
	"github.com/sells-group/unitmap/internal/dxf/dxftest"
	"github.com/sells-group/unitmap/internal/geo"
)

func TestFormatPolygons(t *testing.T) {
	doc, err := dxf.Parse(dxftest.New().
		Square("LOTS", 0, 0, 10, 10).
		Square("LOTS", 20, 0, 22, 3).
		Bytes())
	require.NoError(t, err)
	polys, err := geo.PolygonsFromDrawing(doc, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, formatPolygons(&buf, polys, false))
	out := buf.String()

	assert.Contains(t, out, "HANDLE")
	assert.NotContains(t, out, "WKB")
	assert.Contains(t, out, "100.0000")
	assert.Contains(t, out, "(0 0, 10 10)")
	assert.Contains(t, out, "2 polygons, total area 106.0000 (min 6.0000, max 100.0000)")
}

func TestFormatPolygons_WKB(t *testing.T) {
	doc, err := dxf.Parse(dxftest.New().Square("LOTS", 0, 0, 1, 1).Bytes())
	require.NoError(t, err)
	polys, err := geo.PolygonsFromDrawing(doc, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, formatPolygons(&buf, polys, true))
	// Little-endian polygon header.
	assert.Contains(t, buf.String(), "0103000000")
}

func TestFormatPolygons_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatPolygons(&buf, nil, false))
	assert.NotContains(t, buf.String(), "polygons, total area")
}

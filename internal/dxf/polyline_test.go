package dxf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/unitmap/internal/dxf/dxftest"
	"github.com/sells-group/unitmap/internal/model"
)

func TestClosedPolylines_LWPolyline(t *testing.T) {
	t.Parallel()

	data := dxftest.New().
		Square("BOUNDARY", 0, 0, 10, 5).
		LWPolyline("BOUNDARY", false, [2]float64{0, 0}, [2]float64{1, 1}, [2]float64{2, 0}).
		Line("BOUNDARY", 0, 0, 3, 3).
		Bytes()
	doc, err := Parse(data)
	require.NoError(t, err)

	pls, err := doc.ClosedPolylines()
	require.NoError(t, err)
	require.Len(t, pls, 1)

	pl := pls[0]
	assert.Equal(t, "LWPOLYLINE", pl.Type)
	assert.Equal(t, "100", pl.Handle)
	assert.Equal(t, "BOUNDARY", pl.Layer)
	assert.Equal(t, []Vertex{{0, 0}, {10, 0}, {10, 5}, {0, 5}}, pl.Vertices)
}

func TestClosedPolylines_LegacyPolyline(t *testing.T) {
	t.Parallel()

	data := dxftest.NewR12().
		Polyline("LOT", true, [2]float64{1, 1}, [2]float64{4, 1}, [2]float64{4, 3}).
		Polyline("LOT", false, [2]float64{0, 0}, [2]float64{9, 9}, [2]float64{9, 0}).
		Square("LOT", 20, 20, 30, 30).
		Bytes()
	doc, err := Parse(data)
	require.NoError(t, err)

	pls, err := doc.ClosedPolylines()
	require.NoError(t, err)
	require.Len(t, pls, 2)

	assert.Equal(t, "POLYLINE", pls[0].Type)
	assert.Equal(t, []Vertex{{1, 1}, {4, 1}, {4, 3}}, pls[0].Vertices, "z discarded, dummy origin ignored")
	assert.Equal(t, "LWPOLYLINE", pls[1].Type, "entities after SEQEND still read")
}

func TestClosedPolylines_SkipsPaperSpaceAndMeshes(t *testing.T) {
	t.Parallel()

	data := dxftest.NewR12().
		Raw("0", "LWPOLYLINE", "8", "VIEWPORT", "67", "1", "90", "3", "70", "1",
			"10", "0", "20", "0", "10", "1", "20", "0", "10", "1", "20", "1").
		Raw("0", "POLYLINE", "8", "MESH", "66", "1", "70", "17",
			"0", "VERTEX", "8", "MESH", "10", "0", "20", "0",
			"0", "VERTEX", "8", "MESH", "10", "1", "20", "0",
			"0", "VERTEX", "8", "MESH", "10", "1", "20", "1",
			"0", "SEQEND", "8", "MESH").
		Square("KEEP", 0, 0, 1, 1).
		Bytes()
	doc, err := Parse(data)
	require.NoError(t, err)

	pls, err := doc.ClosedPolylines()
	require.NoError(t, err)
	require.Len(t, pls, 1)
	assert.Equal(t, "KEEP", pls[0].Layer)
}

func TestClosedPolylines_SplineFrameVerticesSkipped(t *testing.T) {
	t.Parallel()

	data := dxftest.NewR12().
		Raw("0", "POLYLINE", "8", "S", "66", "1", "70", "5",
			"0", "VERTEX", "8", "S", "10", "0", "20", "0", "70", "16",
			"0", "VERTEX", "8", "S", "10", "0", "20", "0", "70", "8",
			"0", "VERTEX", "8", "S", "10", "2", "20", "0", "70", "8",
			"0", "VERTEX", "8", "S", "10", "2", "20", "2", "70", "8",
			"0", "SEQEND").
		Bytes()
	doc, err := Parse(data)
	require.NoError(t, err)

	pls, err := doc.ClosedPolylines()
	require.NoError(t, err)
	require.Len(t, pls, 1)
	assert.Equal(t, []Vertex{{0, 0}, {2, 0}, {2, 2}}, pls[0].Vertices)
}

func TestClosedPolylines_MirroredExtrusion(t *testing.T) {
	t.Parallel()

	data := dxftest.NewR12().
		Raw("0", "LWPOLYLINE", "8", "M", "90", "3", "70", "1",
			"10", "1", "20", "0", "10", "2", "20", "0", "10", "2", "20", "1",
			"210", "0", "220", "0", "230", "-1").
		Bytes()
	doc, err := Parse(data)
	require.NoError(t, err)

	pls, err := doc.ClosedPolylines()
	require.NoError(t, err)
	require.Len(t, pls, 1)
	assert.Equal(t, []Vertex{{-1, 0}, {-2, 0}, {-2, 1}}, pls[0].Vertices)
}

func TestClosedPolylines_BadNumbers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pairs []string
	}{
		{"bad x", []string{"0", "LWPOLYLINE", "70", "1", "10", "east", "20", "0"}},
		{"bad y", []string{"0", "LWPOLYLINE", "70", "1", "10", "1", "20", "north"}},
		{"bad flags", []string{"0", "LWPOLYLINE", "70", "closed", "10", "1", "20", "1"}},
		{"y before x", []string{"0", "LWPOLYLINE", "70", "1", "20", "1"}},
		{"dangling x", []string{"0", "LWPOLYLINE", "70", "1", "10", "1"}},
		{"bad vertex", []string{"0", "POLYLINE", "70", "1", "0", "VERTEX", "10", "?", "20", "0", "0", "SEQEND"}},
		{"bad polyline flags", []string{"0", "POLYLINE", "70", "x", "0", "SEQEND"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := Parse(dxftest.NewR12().Raw(tt.pairs...).Bytes())
			require.NoError(t, err)

			_, err = doc.ClosedPolylines()
			require.Error(t, err)
			assert.True(t, model.IsKind(err, model.ErrParse))
		})
	}
}

func TestClosedPolylines_DecodesCodepageLayers(t *testing.T) {
	t.Parallel()

	big5, err := htmlindex.Get("big5")
	require.NoError(t, err)
	layer, err := big5.NewEncoder().String("建築線")
	require.NoError(t, err)

	doc, err := Parse(dxftest.New().Codepage("ANSI_950").Square(layer, 0, 0, 1, 1).Bytes())
	require.NoError(t, err)

	pls, err := doc.ClosedPolylines()
	require.NoError(t, err)
	require.Len(t, pls, 1)
	assert.Equal(t, "建築線", pls[0].Layer)
}

func TestCodepageEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cp string
		ok bool
	}{
		{"ANSI_950", true},
		{"ansi_936", true},
		{"ANSI_932", true},
		{"ANSI_1252", true},
		{"ANSI_1258", true},
		{"ANSI_874", true},
		{"UTF-8", false},
		{"", false},
		{"ANSI_437", false},
		{"DOS", false},
	}

	for _, tt := range tests {
		t.Run(tt.cp, func(t *testing.T) {
			t.Parallel()
			enc, ok := CodepageEncoding(tt.cp)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.NotNil(t, enc)
			}
		})
	}
}

package annotate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/unitmap/internal/dxf"
	"github.com/sells-group/unitmap/internal/dxf/dxftest"
	"github.com/sells-group/unitmap/internal/model"
)

func circles(t *testing.T, data []byte) []dxf.Entity {
	t.Helper()
	doc, err := dxf.Parse(data)
	require.NoError(t, err)
	var out []dxf.Entity
	for _, e := range doc.Entities() {
		if e.Type == "CIRCLE" {
			out = append(out, e)
		}
	}
	return out
}

func TestRender_ColorsByCategory(t *testing.T) {
	t.Parallel()

	src := dxftest.New().Square("LOTS", 0, 0, 10, 10).Bytes()
	doc, err := dxf.Parse(src)
	require.NoError(t, err)

	markers := []Marker{
		{X: 1, Y: 1, Category: model.CategorySingleUnit},
		{X: 2, Y: 2, Category: model.CategoryLowRise},
		{X: 3, Y: 3, Category: model.CategoryHighRise},
	}
	out, err := Render(doc, markers, DefaultStyle())
	require.NoError(t, err)

	got := circles(t, out)
	require.Len(t, got, 3)

	tests := []struct {
		color string
		x     string
	}{
		{"3", "1.0"},
		{"5", "2.0"},
		{"1", "3.0"},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.color, got[i].Value(62), "marker %d", i)
		assert.Equal(t, tt.x, got[i].Value(10), "marker %d", i)
		assert.Equal(t, "0.5", got[i].Value(40))
		assert.Equal(t, "0", got[i].Value(8))
	}
}

func TestRender_DoesNotMutateSource(t *testing.T) {
	t.Parallel()

	src := dxftest.New().Square("LOTS", 0, 0, 10, 10).Bytes()
	doc, err := dxf.Parse(src)
	require.NoError(t, err)
	before := doc.Len()

	_, err = Render(doc, []Marker{{X: 1, Y: 1, Category: model.CategorySingleUnit}}, DefaultStyle())
	require.NoError(t, err)

	assert.Equal(t, before, doc.Len())
	again, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, src, again)
}

func TestRender_NoMarkersIsIdentity(t *testing.T) {
	t.Parallel()

	src := dxftest.New().CRLF().Square("LOTS", 0, 0, 10, 10).Bytes()
	doc, err := dxf.Parse(src)
	require.NoError(t, err)

	out, err := Render(doc, nil, DefaultStyle())
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestRender_Deterministic(t *testing.T) {
	t.Parallel()

	doc, err := dxf.Parse(dxftest.New().Square("LOTS", 0, 0, 10, 10).Bytes())
	require.NoError(t, err)
	markers := []Marker{{X: 1, Y: 1, Category: model.CategoryLowRise}, {X: 1.1, Y: 1, Category: model.CategoryLowRise}}

	a, err := Render(doc, markers, DefaultStyle())
	require.NoError(t, err)
	b, err := Render(doc, markers, DefaultStyle())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_CustomStyle(t *testing.T) {
	t.Parallel()

	doc, err := dxf.Parse(dxftest.NewR12().Square("LOTS", 0, 0, 10, 10).Bytes())
	require.NoError(t, err)

	style := Style{
		MarkerRadius: 0.25,
		Layer:        "UNITS",
		Colors: map[model.Category]int{
			model.CategorySingleUnit: 7,
			model.CategoryLowRise:    30,
			model.CategoryHighRise:   140,
		},
	}
	out, err := Render(doc, []Marker{{X: 5, Y: 5, Category: model.CategoryLowRise}}, style)
	require.NoError(t, err)

	got := circles(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, "30", got[0].Value(62))
	assert.Equal(t, "UNITS", got[0].Value(8))
	assert.Equal(t, "0.25", got[0].Value(40))
	assert.Empty(t, got[0].Value(5), "R12 drawings without a handle seed get no handles")
}

func TestRender_Errors(t *testing.T) {
	t.Parallel()

	doc, err := dxf.Parse(dxftest.New().Square("LOTS", 0, 0, 10, 10).Bytes())
	require.NoError(t, err)

	_, err = Render(doc, []Marker{{X: math.NaN(), Y: 1, Category: model.CategorySingleUnit}}, DefaultStyle())
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrSerialization))

	_, err = Render(doc, []Marker{{X: 1, Y: 1, Category: "tower"}}, DefaultStyle())
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrSerialization))
}

func TestStyle_Validate(t *testing.T) {
	t.Parallel()

	dup := DefaultStyle()
	dup.Colors = map[model.Category]int{
		model.CategorySingleUnit: 1,
		model.CategoryLowRise:    1,
		model.CategoryHighRise:   5,
	}
	missing := DefaultStyle()
	missing.Colors = map[model.Category]int{model.CategorySingleUnit: 1}
	zeroRadius := DefaultStyle()
	zeroRadius.MarkerRadius = 0
	badColor := DefaultStyle()
	badColor.Colors = map[model.Category]int{
		model.CategorySingleUnit: 256,
		model.CategoryLowRise:    2,
		model.CategoryHighRise:   3,
	}

	tests := []struct {
		name    string
		style   Style
		wantErr string
	}{
		{"default", DefaultStyle(), ""},
		{"duplicate color", dup, "share color"},
		{"missing color", missing, "no color"},
		{"zero radius", zeroRadius, "marker radius"},
		{"bylayer color", badColor, "outside 1-255"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.style.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

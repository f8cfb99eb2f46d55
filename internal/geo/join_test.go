package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/unitmap/internal/model"
)

func pts(coords ...[2]float64) []model.Point {
	out := make([]model.Point, len(coords))
	for i, c := range coords {
		out[i] = model.Point{X: c[0], Y: c[1], Row: i + 1}
	}
	return out
}

func TestJoin_RetainsInsideAndBoundary(t *testing.T) {
	t.Parallel()

	polys := []*Polygon{square(t, 0, 0, 0, 10, 10)}
	points := pts([2]float64{5, 5}, [2]float64{20, 20}, [2]float64{10, 10}, [2]float64{-0.001, 5})

	got := Join(points, polys, OverlapFirst)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 2, got[1].Index, "vertex point is inside")
	assert.Equal(t, 3, got[1].Point.Row)
	assert.Equal(t, []int{0}, got[0].PolygonIDs)
}

func TestJoin_NoHits(t *testing.T) {
	t.Parallel()

	polys := []*Polygon{square(t, 0, 0, 0, 1, 1)}
	got := Join(pts([2]float64{5, 5}), polys, OverlapFirst)
	assert.Empty(t, got)
}

func TestJoin_OverlapPolicies(t *testing.T) {
	t.Parallel()

	site := square(t, 0, 0, 0, 100, 100)
	lot := square(t, 1, 10, 10, 20, 20)
	polys := []*Polygon{site, lot}
	points := pts([2]float64{15, 15}, [2]float64{50, 50})

	first := Join(points, polys, OverlapFirst)
	require.Len(t, first, 2, "overlapping polygons never duplicate a point")
	assert.Equal(t, 0, first[0].PolygonID)
	assert.Equal(t, []int{0, 1}, first[0].PolygonIDs)

	smallest := Join(points, polys, OverlapSmallest)
	require.Len(t, smallest, 2)
	assert.Equal(t, 1, smallest[0].PolygonID)
	assert.Equal(t, []int{0, 1}, smallest[0].PolygonIDs)
	assert.Equal(t, 0, smallest[1].PolygonID)
}

func TestParseOverlap(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Overlap{"": OverlapFirst, "first": OverlapFirst, "smallest": OverlapSmallest} {
		got, err := ParseOverlap(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseOverlap("largest")
	assert.Error(t, err)
}

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/unitmap/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res := analyze(t)
	created := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	rec, err := NewRecord("run-1", res, created)
	require.NoError(t, err)
	require.NoError(t, st.SaveRun(ctx, rec))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "site.dxf", got.DrawingName)
	assert.Equal(t, "units.csv", got.PointsName)
	assert.Equal(t, res.Stats, got.Stats)
	assert.Equal(t, res.Params, got.Params)
	assert.Equal(t, 3, got.Retained)
	assert.True(t, created.Equal(got.CreatedAt))

	drawing, err := st.GetDrawing(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, res.Drawing, drawing)

	pts, err := st.GetRunPoints(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Points, pts)

	polys, err := st.GetRunPolygons(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Polygons, polys)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))

	_, err = st.GetDrawing(ctx, "missing")
	assert.True(t, eris.Is(err, ErrNotFound))

	_, err = st.GetRunPoints(ctx, "missing")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_DuplicateIDRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec, err := NewRecord("dup", analyze(t), time.Now())
	require.NoError(t, err)
	require.NoError(t, st.SaveRun(ctx, rec))
	require.Error(t, st.SaveRun(ctx, rec))

	pts, err := st.GetRunPoints(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, pts, 3, "failed save leaves no extra rows")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	res := analyze(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec, err := NewRecord(fmt.Sprintf("run-%d", i), res, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		if i%2 == 1 {
			rec.Run.DrawingName = "other.dxf"
		}
		require.NoError(t, st.SaveRun(ctx, rec))
	}

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 5)
	assert.Equal(t, "run-4", runs[0].ID, "newest first")

	runs, err = st.ListRuns(ctx, RunFilter{DrawingName: "other.dxf"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
}

func TestSQLite_ZeroRetainedRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := &RunRecord{
		Run:     model.Run{ID: "empty", CreatedAt: time.Now()},
		Drawing: []byte("0\nEOF\n"),
	}
	require.NoError(t, st.SaveRun(ctx, rec))

	pts, err := st.GetRunPoints(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

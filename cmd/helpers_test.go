package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/unitmap/internal/dxf/dxftest"
	"github.com/sells-group/unitmap/internal/pipeline"
)

// writeSite writes a one-lot drawing and a four-unit CSV into dir: a pair of
// units forming a low-rise structure, one single unit and one unit outside
// the lot.
func writeSite(t *testing.T, dir string) (drawing, pts string) {
	t.Helper()
	drawing = filepath.Join(dir, "site.dxf")
	pts = filepath.Join(dir, "units.csv")
	require.NoError(t, os.WriteFile(drawing, dxftest.New().Square("LOTS", 0, 0, 10, 10).Bytes(), 0o644))
	require.NoError(t, os.WriteFile(pts, []byte("UNIT,X,Y\nA,1,1\nB,1.1,1\nC,5,5\nD,50,50\n"), 0o644))
	return drawing, pts
}

func testAnalyzer(t *testing.T) *pipeline.Analyzer {
	t.Helper()
	a, err := pipeline.New(pipeline.DefaultConfig())
	require.NoError(t, err)
	return a
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/unitmap/internal/dxf"
	"github.com/sells-group/unitmap/internal/dxf/dxftest"
	"github.com/sells-group/unitmap/internal/model"
	"github.com/sells-group/unitmap/internal/pipeline"
	"github.com/sells-group/unitmap/internal/points"
	"github.com/sells-group/unitmap/internal/store"
)

const unitsCSV = "UNIT,X,Y\nA,1,1\nB,1.1,1\nC,5,5\nD,50,50\n"

func siteDrawing() []byte {
	return dxftest.New().Square("LOTS", 0, 0, 10, 10).Bytes()
}

func newTestServer(t *testing.T, st store.Store, opts Options) *httptest.Server {
	t.Helper()
	a, err := pipeline.New(pipeline.DefaultConfig())
	require.NoError(t, err)

	opts.Points = points.DefaultOptions()
	s := New(a, st, opts)
	s.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	n := 0
	s.newID = func() string {
		n++
		return []string{"run-a", "run-b", "run-c"}[n-1]
	}

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newSQLite(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type upload struct {
	field, name string
	data        []byte
}

func postAnalysis(t *testing.T, ts *httptest.Server, fields map[string]string, files ...upload) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/v1/analyses", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func validUploads() []upload {
	return []upload{
		{"drawing", "site.dxf", siteDrawing()},
		{"points", "units.csv", []byte(unitsCSV)},
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["store"])
}

func TestCreateAnalysis_WithoutStore(t *testing.T) {
	ts := newTestServer(t, nil, Options{SaveRuns: true})

	resp := postAnalysis(t, ts, nil, validUploads()...)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[AnalysisResponse](t, resp)
	assert.Empty(t, got.ID)
	assert.Equal(t, 4, got.InputPoints)
	assert.Equal(t, 3, got.Retained)
	assert.Equal(t, 1, got.Polygons)
	assert.Equal(t, 2, got.Stats.LowRiseCount)
	assert.Equal(t, 1, got.Stats.SingleUnitCount)
	assert.Equal(t, 3, got.Stats.TotalUnits)
	assert.Equal(t, 2, got.Stats.TotalStructures)
	assert.InDelta(t, 0.17, got.Params.Radius, 1e-12)

	doc, err := dxf.Parse(got.Drawing)
	require.NoError(t, err)
	circles := 0
	for _, e := range doc.Entities() {
		if e.Type == "CIRCLE" {
			circles++
		}
	}
	assert.Equal(t, 3, circles)
}

func TestCreateAnalysis_SavesRun(t *testing.T) {
	st := newSQLite(t)
	ts := newTestServer(t, st, Options{SaveRuns: true})

	resp := postAnalysis(t, ts, nil, validUploads()...)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := decode[AnalysisResponse](t, resp)
	assert.Equal(t, "run-a", got.ID)
	assert.Equal(t, "/v1/runs/run-a/drawing", got.DrawingURL)
	assert.Empty(t, got.Drawing, "stored runs return a drawing URL instead")

	run, err := st.GetRun(context.Background(), "run-a")
	require.NoError(t, err)
	assert.Equal(t, "site.dxf", run.DrawingName)
	assert.Equal(t, "units.csv", run.PointsName)
	assert.Equal(t, got.Stats, run.Stats)
}

func TestCreateAnalysis_IncludeDrawing(t *testing.T) {
	ts := newTestServer(t, newSQLite(t), Options{SaveRuns: true})

	resp := postAnalysis(t, ts, map[string]string{"include_drawing": "true"}, validUploads()...)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	got := decode[AnalysisResponse](t, resp)
	assert.NotEmpty(t, got.Drawing)
}

func TestCreateAnalysis_RadiusOverride(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	resp := postAnalysis(t, ts, map[string]string{"radius": "0.05"}, validUploads()...)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[AnalysisResponse](t, resp)
	assert.InDelta(t, 0.05, got.Params.Radius, 1e-12)
	assert.Equal(t, 3, got.Stats.SingleUnitCount)
	assert.Equal(t, 0, got.Stats.LowRiseCount)
}

func TestCreateAnalysis_Errors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		files      []upload
		wantStatus int
		wantKind   string
		wantStage  string
	}{
		{
			name:       "missing drawing",
			files:      []upload{{"points", "units.csv", []byte(unitsCSV)}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing points",
			files:      []upload{{"drawing", "site.dxf", siteDrawing()}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed drawing",
			files:      []upload{{"drawing", "site.dxf", []byte("not a drawing")}, {"points", "units.csv", []byte(unitsCSV)}},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "ParseError",
			wantStage:  "parse",
		},
		{
			name:       "missing coordinate column",
			files:      []upload{{"drawing", "site.dxf", siteDrawing()}, {"points", "units.csv", []byte("UNIT,LAT\nA,1\n")}},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "DataError",
			wantStage:  "load",
		},
		{
			name:       "no polygons",
			files:      []upload{{"drawing", "site.dxf", dxftest.New().Line("0", 0, 0, 1, 1).Bytes()}, {"points", "units.csv", []byte(unitsCSV)}},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "DataError",
			wantStage:  "parse",
		},
		{
			name:       "bad radius",
			fields:     map[string]string{"radius": "wide"},
			files:      validUploads(),
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "DataError",
		},
		{
			name:       "negative radius",
			fields:     map[string]string{"radius": "-1"},
			files:      validUploads(),
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "DataError",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil, Options{})
			resp := postAnalysis(t, ts, tt.fields, tt.files...)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			got := decode[ErrorResponse](t, resp)
			assert.NotEmpty(t, got.Error)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantStage, got.Stage)
		})
	}
}

func TestCreateAnalysis_TooLarge(t *testing.T) {
	ts := newTestServer(t, nil, Options{MaxUploadBytes: 64})

	resp := postAnalysis(t, ts, nil, validUploads()...)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRuns(t *testing.T) {
	st := newSQLite(t)
	ts := newTestServer(t, st, Options{SaveRuns: true})

	for range 2 {
		resp := postAnalysis(t, ts, nil, validUploads()...)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs?drawing=site.dxf&limit=1")
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[map[string][]map[string]any](t, resp)
		assert.Len(t, body["runs"], 1)
	})

	t.Run("list other drawing is empty", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs?drawing=other.dxf")
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"runs":[]}`, string(raw))
	})

	t.Run("bad limit", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs?limit=0")
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("get", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs/run-b")
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		assert.Equal(t, "run-b", body["id"])
		assert.EqualValues(t, 3, body["retained"])
	})

	t.Run("drawing", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs/run-a/drawing")
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/dxf", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "run-a.dxf")

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		_, err = dxf.Parse(raw)
		assert.NoError(t, err)
	})

	t.Run("points", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs/run-a/points")
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[map[string][]map[string]any](t, resp)
		require.Len(t, body["points"], 3)
		assert.Equal(t, "low_rise", body["points"][0]["category"])
	})

	t.Run("polygons", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/v1/runs/run-a/polygons")
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[map[string][]map[string]any](t, resp)
		require.Len(t, body["polygons"], 1)
		assert.Equal(t, "LOTS", body["polygons"][0]["layer"])
	})

	for _, path := range []string{"/v1/runs/missing", "/v1/runs/missing/drawing", "/v1/runs/missing/points"} {
		t.Run("not found "+path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}

func TestRuns_NoStore(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	for _, path := range []string{"/v1/runs", "/v1/runs/run-a", "/v1/runs/run-a/drawing"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil, Options{AllowedOrigins: []string{"https://maps.example.com"}})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/analyses", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://maps.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "https://maps.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantStage  string
	}{
		{
			name:       "cancelled",
			err:        eris.Wrap(context.Canceled, "pipeline: cancelled during cluster"),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "deadline",
			err:        eris.Wrap(context.DeadlineExceeded, "pipeline: cancelled before annotate"),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "data error",
			err:        model.NewStageError(model.StageCluster, model.ErrData, eris.New("cluster: no coordinates")),
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   string(model.ErrData),
			wantStage:  string(model.StageCluster),
		},
		{
			name:       "not found",
			err:        eris.Wrap(store.ErrNotFound, "store: run missing"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "serialization",
			err:        model.NewStageError(model.StageAnnotate, model.ErrSerialization, eris.New("annotate: encode")),
			wantStatus: http.StatusInternalServerError,
			wantKind:   string(model.ErrSerialization),
			wantStage:  string(model.StageAnnotate),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAppError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.wantStage, resp.Stage)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/unitmap/internal/model"
	"github.com/sells-group/unitmap/internal/pipeline"
	"github.com/sells-group/unitmap/internal/points"
	"github.com/sells-group/unitmap/internal/store"
)

func newRunID() string {
	return uuid.New().String()
}

// AnalysisResponse is the body returned by POST /v1/analyses.
type AnalysisResponse struct {
	ID          string              `json:"id,omitempty"`
	Stats       model.CategoryStats `json:"stats"`
	Params      model.RunParams     `json:"params"`
	InputPoints int                 `json:"input_points"`
	Retained    int                 `json:"retained"`
	Polygons    int                 `json:"polygons"`
	DurationMS  int64               `json:"duration_ms"`
	DrawingURL  string              `json:"drawing_url,omitempty"`
	// Drawing carries the annotated DXF (base64) when the run is not stored
	// or the client asked for it.
	Drawing []byte `json:"drawing,omitempty"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Stage string `json:"stage,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"store":  s.store != nil,
	})
}

func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, eris.Errorf("upload exceeds %d bytes", s.opts.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "parse multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	drawing, drawingName, err := formFile(r, "drawing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ptsFile, ptsHeader, err := r.FormFile("points")
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.New(`multipart field "points" is required`))
		return
	}
	defer ptsFile.Close() //nolint:errcheck

	analyzer := s.analyzer
	if v := r.FormValue("radius"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeAppError(w, model.DataError(eris.Errorf("radius %q is not a number", v)))
			return
		}
		cfg := analyzer.Config()
		cfg.Radius = radius
		if analyzer, err = pipeline.New(cfg); err != nil {
			writeAppError(w, err)
			return
		}
	}

	ctx := r.Context()
	ds, err := points.Read(ctx, ptsHeader.Filename, ptsFile, s.opts.Points)
	if err != nil {
		writeAppError(w, model.NewStageError(model.StageLoad, model.ErrData, err))
		return
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, eris.Wrap(err, "waiting for an analysis slot"))
		return
	}
	res, err := analyzer.Run(ctx, pipeline.Input{DrawingName: drawingName, Drawing: drawing, Points: ds})
	s.slots.Release(1)
	if err != nil {
		zap.L().Warn("server: analysis failed",
			zap.String("drawing", drawingName),
			zap.String("points", ptsHeader.Filename),
			zap.Error(err),
		)
		writeAppError(w, err)
		return
	}

	resp := AnalysisResponse{
		Stats:       res.Stats,
		Params:      res.Params,
		InputPoints: res.InputPoints,
		Retained:    len(res.Retained),
		Polygons:    len(res.Polygons),
		DurationMS:  res.Duration.Milliseconds(),
	}

	saved := false
	if s.opts.SaveRuns && s.store != nil {
		id := s.newID()
		rec, err := store.NewRecord(id, res, s.now())
		if err == nil {
			err = s.store.SaveRun(ctx, rec)
		}
		if err != nil {
			writeAppError(w, eris.Wrap(err, "save run"))
			return
		}
		resp.ID = id
		resp.DrawingURL = fmt.Sprintf("/v1/runs/%s/drawing", id)
		saved = true
	}
	if !saved || r.FormValue("include_drawing") == "true" {
		resp.Drawing = res.Drawing
	}

	status := http.StatusOK
	if saved {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, eris.New("run history is disabled"))
		return
	}

	filter := store.RunFilter{DrawingName: r.URL.Query().Get("drawing")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, eris.Errorf("limit must be between 1 and 1000, got %q", v))
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, eris.Errorf("offset must be a non-negative integer, got %q", v))
			return
		}
		filter.Offset = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, eris.New("run history is disabled"))
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getDrawing(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, eris.New("run history is disabled"))
		return
	}
	id := chi.URLParam(r, "runID")
	data, err := s.store.GetDrawing(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/dxf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.dxf"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) getRunPoints(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, eris.New("run history is disabled"))
		return
	}
	pts, err := s.store.GetRunPoints(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if pts == nil {
		pts = []model.RunPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": pts})
}

func (s *Server) getRunPolygons(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, eris.New("run history is disabled"))
		return
	}
	polys, err := s.store.GetRunPolygons(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if polys == nil {
		polys = []model.RunPolygon{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"polygons": polys})
}

func formFile(r *http.Request, field string) ([]byte, string, error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", eris.Errorf("multipart field %q is required", field)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", eris.Wrapf(err, "read %s upload", field)
	}
	return data, header.Filename, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// writeAppError maps analysis and store errors to status codes: input
// problems are 422, missing runs 404, anything else 500.
func writeAppError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Kind: string(model.KindOf(err))}
	var se *model.StageError
	if errors.As(err, &se) {
		resp.Stage = string(se.Stage)
	}

	status := http.StatusInternalServerError
	switch {
	case eris.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	case model.IsKind(err, model.ErrParse), model.IsKind(err, model.ErrData):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("server: internal error", zap.Error(err))
	}
	writeJSON(w, status, resp)
}

// Package server exposes analyses and stored runs over HTTP for browser
// front-ends.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/unitmap/internal/pipeline"
	"github.com/sells-group/unitmap/internal/points"
	"github.com/sells-group/unitmap/internal/store"
)

// Options configures the API.
type Options struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	// MaxConcurrent bounds analyses running at once; further requests wait.
	MaxConcurrent int64
	// Timeout bounds each request. Zero disables it.
	Timeout time.Duration
	// SaveRuns stores every successful analysis. Requires a store.
	SaveRuns bool
	Points   points.Options
}

// Server holds the API dependencies. The store may be nil, in which case
// run endpoints answer 404 and analyses are never saved.
type Server struct {
	analyzer *pipeline.Analyzer
	store    store.Store
	opts     Options
	slots    *semaphore.Weighted
	now      func() time.Time
	newID    func() string
}

// New returns a Server.
func New(analyzer *pipeline.Analyzer, st store.Store, opts Options) *Server {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	return &Server{
		analyzer: analyzer,
		store:    st,
		opts:     opts,
		slots:    semaphore.NewWeighted(opts.MaxConcurrent),
		now:      time.Now,
		newID:    newRunID,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	}))
	if s.opts.Timeout > 0 {
		r.Use(chimw.Timeout(s.opts.Timeout))
	}

	r.Get("/health", s.health)

	r.Route("/v1", func(api chi.Router) {
		api.Post("/analyses", s.createAnalysis)
		api.Route("/runs", func(runs chi.Router) {
			runs.Get("/", s.listRuns)
			runs.Route("/{runID}", func(item chi.Router) {
				item.Get("/", s.getRun)
				item.Get("/drawing", s.getDrawing)
				item.Get("/points", s.getRunPoints)
				item.Get("/polygons", s.getRunPolygons)
			})
		})
	})

	return r
}

// requestLogger logs one line per request with the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Info("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

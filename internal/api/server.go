// Package api exposes the dashboard projections over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/hitrate-cli/internal/dashboard"
)

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins []string
	// ReloadTimeout bounds POST /api/reload. Zero means five minutes.
	ReloadTimeout time.Duration
}

// Server serves the dashboard service.
type Server struct {
	svc  *dashboard.Service
	opts Options
}

// New creates a Server.
func New(svc *dashboard.Service, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = 5 * time.Minute
	}
	return &Server{svc: svc, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/filters", s.filters)
		r.Get("/equipment", s.equipment)
		r.Get("/equipment.geojson", s.equipmentGeoJSON)
		r.Get("/companies", s.companies)
		r.Get("/summary", s.summary)
		r.Get("/mappings", s.mappings)
		r.Get("/quality", s.quality)
		r.Get("/ingest", s.ingestReport)
		r.Get("/runs", s.runs)
		r.Post("/reload", s.reload)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

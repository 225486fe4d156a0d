package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/strata/internal/engine"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the strata HTTP API server.
type Server struct {
	eng     *engine.Engine
	log     *zap.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given engine.
func New(eng *engine.Engine, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		eng:     eng,
		log:     logger,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(s.eng.Metrics().Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/analyze", s.handleAnalyze)
		r.Get("/runs", s.handleRuns)
		r.Put("/phase", s.handleSetPhase)

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Post("/", s.handleWrite)
			r.Delete("/", s.handleRemove)
			r.Get("/lookup", s.handleLookup)
			r.Post("/move", s.handleMove)
			r.Put("/importance", s.handleSetImportance)
		})

		r.Get("/search", s.handleSearch)
		r.Post("/load", s.handleLoad)
		r.Post("/page", s.handlePage)
		r.Post("/cycle", s.handleCycle)

		r.Post("/sweep/expired", s.handleSweepExpired)
		r.Post("/sweep/duplicates", s.handleSweepDuplicates)
		r.Post("/optimize", s.handleOptimize)
	})

	s.router = r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := false
	dbPath := ""
	schema := 0
	if s.eng.DB != nil {
		dbOK = s.eng.DB.Ping() == nil
		dbPath = s.eng.DB.Path
		schema, _ = s.eng.DB.SchemaVersion()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime":         time.Since(s.started).Seconds(),
		"db":             dbOK,
		"db_path":        dbPath,
		"schema_version": schema,
	})
}

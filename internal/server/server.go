// Package server serves the interactive explorer: the run selector, the
// topic map and trend views, and pipeline launches.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maxonary/ai-trend-clustering/internal/pipeline"
	"github.com/maxonary/ai-trend-clustering/internal/projection"
	"github.com/maxonary/ai-trend-clustering/internal/runstore"
	"github.com/maxonary/ai-trend-clustering/internal/trend"
	"github.com/maxonary/ai-trend-clustering/internal/viz"
)

const maxRequestBodySize = 1 << 20

// Deps are the components the server drives.
type Deps struct {
	Loader     *runstore.Loader
	Projector  *projection.Projector
	Aggregator *trend.Aggregator

	// Runner launches pipelines; POST /api/runs is disabled when nil.
	Runner *pipeline.Runner
	Logger *slog.Logger
}

// Server holds the explorer state shared across requests.
type Server struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	last    pipeline.Event
}

// New returns a Server.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deps: deps, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleExplorer)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Post("/runs", s.handleStartRun)
		r.Get("/pipeline", s.handlePipelineStatus)
		r.Get("/runs/{id}/projection", s.handleProjection)
		r.Get("/runs/{id}/trend", s.handleTrend)
	})

	r.Get("/runs/{id}/map", s.handleMapPage)
	r.Get("/runs/{id}/trend", s.handleTrendPage)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func writeHTML(w http.ResponseWriter, code int, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(page))
}

// statusFor maps run loading and view errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, runstore.ErrRunNotFound), errors.Is(err, runstore.ErrInvalidID):
		return http.StatusNotFound
	case errors.Is(err, runstore.ErrRunIncomplete):
		return http.StatusConflict
	case errors.Is(err, projection.ErrInvalidParams), errors.Is(err, trend.ErrInvalidBins):
		return http.StatusBadRequest
	case trend.IsMetadataError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExplorer(w http.ResponseWriter, r *http.Request) {
	runs, err := s.deps.Loader.Store().List()
	if err != nil {
		writeHTML(w, http.StatusInternalServerError, viz.ErrorHTML("Runs", err))
		return
	}

	data := viz.DefaultExplorerData()
	for _, h := range runs {
		data.Runs = append(data.Runs, viz.RunOption{ID: h.ID, Label: h.ID})
	}
	if len(runs) > 0 {
		data.Selected = runs[0].ID
	}

	page, err := viz.ExplorerHTML(data)
	if err != nil {
		writeHTML(w, http.StatusInternalServerError, viz.ErrorHTML("Explorer", err))
		return
	}
	writeHTML(w, http.StatusOK, page)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	all, err := s.deps.Loader.Store().Scan()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing runs: %v", err)
		return
	}
	includeIncomplete := r.URL.Query().Get("all") == "true"
	runs := make([]runstore.Status, 0, len(all))
	for _, st := range all {
		if st.Complete || includeIncomplete {
			runs = append(runs, st)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil {
		httpError(w, http.StatusServiceUnavailable, "pipeline runs are disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	req := pipeline.Request{
		Category:   pipeline.DefaultCategory,
		StartYear:  pipeline.DefaultStartYear,
		MaxResults: pipeline.DefaultMaxResults,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		httpError(w, http.StatusConflict, "a pipeline run is already in progress")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	res, err := s.deps.Runner.Run(r.Context(), req, func(e pipeline.Event) {
		s.mu.Lock()
		s.last = e
		s.mu.Unlock()
	})
	if err != nil {
		if se, ok := pipeline.IsStageError(err); ok {
			httpError(w, http.StatusBadGateway, "%v", se)
			return
		}
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	last, running := s.last, s.running
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, struct {
		pipeline.Event
		Running bool `json:"running"`
	}{last, running})
}

// viewParams parses the map and trend query parameters, falling back to
// the explorer defaults.
func viewParams(r *http.Request) (neighbors int, minDist float64, bins int, err error) {
	q := r.URL.Query()
	neighbors, minDist, bins = projection.DefaultNeighbors, projection.DefaultMinDist, trend.DefaultBins
	if v := q.Get("neighbors"); v != "" {
		if neighbors, err = strconv.Atoi(v); err != nil {
			return 0, 0, 0, fmt.Errorf("neighbors: %q is not an integer", v)
		}
	}
	if v := q.Get("min_dist"); v != "" {
		if minDist, err = strconv.ParseFloat(v, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("min_dist: %q is not a number", v)
		}
	}
	if v := q.Get("bins"); v != "" {
		if bins, err = strconv.Atoi(v); err != nil {
			return 0, 0, 0, fmt.Errorf("bins: %q is not an integer", v)
		}
	}
	return neighbors, minDist, bins, nil
}

func (s *Server) project(r *http.Request) (*projection.Projection, error) {
	neighbors, minDist, _, err := viewParams(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", projection.ErrInvalidParams, err)
	}
	run, err := s.deps.Loader.Load(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return s.deps.Projector.Project(run.Model, neighbors, minDist)
}

func (s *Server) trend(r *http.Request) (*trend.Trend, error) {
	_, _, bins, err := viewParams(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", trend.ErrInvalidBins, err)
	}
	run, err := s.deps.Loader.Load(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return s.deps.Aggregator.Compute(run.Model, run.Handle.CorpusPath(), bins)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	p, err := s.project(r)
	if err != nil {
		s.logger.Warn("projection failed", "run", chi.URLParam(r, "id"), "error", err)
		httpError(w, statusFor(err), "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projection": p, "figure": viz.TopicMapFigure(p)})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	t, err := s.trend(r)
	if err != nil {
		s.logger.Warn("trend failed", "run", chi.URLParam(r, "id"), "error", err)
		httpError(w, statusFor(err), "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trend": t, "figure": viz.TrendFigure(t)})
}

func (s *Server) handleMapPage(w http.ResponseWriter, r *http.Request) {
	p, err := s.project(r)
	if err != nil {
		writeHTML(w, statusFor(err), viz.ErrorHTML("Could not compute projection", err))
		return
	}
	page, err := viz.TopicMapHTML(p, viz.DefaultOptions())
	if err != nil {
		writeHTML(w, http.StatusInternalServerError, viz.ErrorHTML("Could not render topic map", err))
		return
	}
	writeHTML(w, http.StatusOK, page)
}

func (s *Server) handleTrendPage(w http.ResponseWriter, r *http.Request) {
	t, err := s.trend(r)
	if err != nil {
		writeHTML(w, statusFor(err), viz.ErrorHTML("Could not generate trends", err))
		return
	}
	page, err := viz.TrendHTML(t, viz.DefaultOptions())
	if err != nil {
		writeHTML(w, http.StatusInternalServerError, viz.ErrorHTML("Could not render trends", err))
		return
	}
	writeHTML(w, http.StatusOK, page)
}

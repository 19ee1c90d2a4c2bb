// Package server exposes the probe over HTTP: POST /run executes one
// conversation against the agent under test and returns the full run
// report, with the session's duplicated questions appended.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"agentprobe/internal/dedup"
	"agentprobe/internal/probe"
	"agentprobe/internal/store"
)

// Runner executes one probe run. Each run gets a fresh instance so runs
// never share mutable state.
type Runner interface {
	Run(ctx context.Context) *probe.RunReport
}

// RunnerFactory builds a new runner per request. Construction failures
// (missing credentials, bad wiring) surface here rather than crashing
// the process.
type RunnerFactory func() (Runner, error)

// Deduper clusters a session's collected questions.
type Deduper interface {
	Deduplicate(ctx context.Context, questions []string) ([]dedup.Cluster, error)
}

// RunArchive persists finished runs. Optional.
type RunArchive interface {
	SaveRun(report *probe.RunReport) (int64, error)
	ListRuns(limit int) ([]store.RunSummary, error)
	GetRun(id int64) (*probe.RunReport, error)
}

// Server is the HTTP front door.
type Server struct {
	newRunner RunnerFactory
	deduper   Deduper
	archive   RunArchive
	logger    *zap.Logger
}

// runResponse is the POST /run response document: the run report plus
// the duplicated-question clusters for the session.
type runResponse struct {
	*probe.RunReport
	DuplicateQuestions []dedup.Cluster `json:"duplicate_questions"`
}

// New creates a server. archive may be nil when archiving is disabled.
func New(factory RunnerFactory, deduper Deduper, archive RunArchive, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		newRunner: factory,
		deduper:   deduper,
		archive:   archive,
		logger:    logger.Named("server"),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/run", s.handleRun)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		// Runs can take minutes; no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRun executes one probe run synchronously. A run that terminates
// on a budget or upstream failure is still a 200 with success=false;
// only wiring failures are a 500.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runner, err := s.newRunner()
	if err != nil {
		s.logger.Error("runner construction failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError)
		return
	}

	report := runner.Run(r.Context())

	resp := runResponse{RunReport: report}
	if s.deduper != nil && len(report.Questions) > 0 {
		clusters, err := s.deduper.Deduplicate(r.Context(), report.Questions)
		if err != nil {
			s.logger.Warn("question dedup failed", zap.Error(err))
		} else {
			resp.DuplicateQuestions = clusters
		}
	}

	if s.archive != nil {
		if _, err := s.archive.SaveRun(report); err != nil {
			s.logger.Warn("run archival failed", zap.Error(err))
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "archive disabled"})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.archive.ListRuns(limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "archive disabled"})
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return
	}

	report, err := s.archive.GetRun(id)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

// writeError returns a generic body so internal details never leak.
func (s *Server) writeError(w http.ResponseWriter, status int) {
	s.writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
}

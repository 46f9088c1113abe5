// Package api exposes the HTTP interface for the insights service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/prof-insights/internal/config"
	"github.com/JakeFAU/prof-insights/internal/insight"
	"github.com/JakeFAU/prof-insights/internal/metrics"
	"github.com/JakeFAU/prof-insights/internal/worker"
)

// JobRunner executes the scrape-and-summarize pipeline for one job.
type JobRunner interface {
	Run(ctx context.Context, jobID string) (worker.Outcome, error)
}

// Server wires HTTP handlers to the job store, trigger, and pipeline.
type Server struct {
	router    chi.Router
	jobs      insight.JobStore
	runner    JobRunner
	trigger   insight.Trigger
	idGen     insight.IDGenerator
	clock     insight.Clock
	cfg       config.Config
	logger    *zap.Logger
	startedAt time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobs insight.JobStore,
	runner JobRunner,
	trigger insight.Trigger,
	idGen insight.IDGenerator,
	clock insight.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobs:      jobs,
		runner:    runner,
		trigger:   trigger,
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		startedAt: clock.Now(),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(10 * time.Minute))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/start-scrape", s.startScrape)
	r.Get("/check-job", s.checkJob)
	r.Post("/run-job", s.runJob)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"uptimeSeconds": int(s.clock.Now().Sub(s.startedAt).Seconds()),
		"storeProvider": s.cfg.Store.Provider,
		"config": map[string]bool{
			"analyzerKeySet": s.cfg.Analyze.APIKey != "",
			"triggerURLSet":  s.cfg.Trigger.RunJobURL != "",
			"authEnabled":    s.cfg.Auth.Enabled,
			"archiveEnabled": s.cfg.Archive.Provider != "" && s.cfg.Archive.Provider != "none",
		},
	})
}

// startScrape accepts a submission, persists the queued job, and fires the
// run trigger without waiting for it. A lost trigger is recovered by the
// reaper, so trigger failure never fails the submission.
func (s *Server) startScrape(w http.ResponseWriter, r *http.Request) {
	var req insight.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate job id: %v", err))
		return
	}
	now := s.clock.Now()
	job := insight.Job{
		ID:            jobID,
		Status:        insight.JobStatusQueued,
		ProfessorName: req.ProfessorName,
		University:    req.University,
		UserQuestion:  req.UserQuestion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.jobs.Create(r.Context(), job); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, insight.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, fmt.Sprintf("create job: %v", err))
		return
	}

	go s.fireTrigger(jobID)

	writeJSON(w, http.StatusCreated, map[string]string{
		"jobId":   jobID,
		"message": "Scrape job started. Poll /check-job for status.",
	})
}

func (s *Server) fireTrigger(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.trigger.TriggerRun(ctx, jobID); err != nil {
		metrics.ObserveTriggerFailure()
		s.logger.Warn("run trigger failed; job stays queued until the reaper retries",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}

func (s *Server) checkJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing required query parameter: id")
		return
	}

	job, err := s.jobs.Get(r.Context(), jobID)
	switch {
	case errors.Is(err, insight.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, insight.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, job)
	}
}

type runJobRequest struct {
	JobID string `json:"jobId"`
}

// runJob executes the pipeline synchronously. Concurrent invocations for
// the same job are safe: the pipeline's claim admits exactly one runner.
func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	var req runJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		writeError(w, http.StatusBadRequest, "missing jobId")
		return
	}

	// The trigger client hangs up as soon as it knows the request landed.
	// That disconnect cancels r.Context(), so the pipeline runs detached;
	// its own timeout is the only bound on execution.
	outcome, err := s.runner.Run(context.WithoutCancel(r.Context()), req.JobID)
	switch {
	case errors.Is(err, insight.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, insight.ErrConflict):
		writeError(w, http.StatusConflict, "job already claimed or finished")
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": err.Error(),
			"jobId":   req.JobID,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"message":     fmt.Sprintf("job %s finished with status %s", outcome.JobID, outcome.Status),
			"duration":    outcome.Duration.Milliseconds(),
			"reviewCount": outcome.ReviewCount,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

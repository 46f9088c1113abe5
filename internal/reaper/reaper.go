// Package reaper re-triggers jobs whose run-job dispatch was lost.
//
// Submission delivers the trigger at most once: a dropped request leaves
// the job queued forever. The reaper closes that gap with a periodic sweep
// that re-posts every job still queued past a deadline. Re-triggering is
// safe because the worker's versioned claim admits only one runner.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/prof-insights/internal/insight"
	"github.com/JakeFAU/prof-insights/internal/metrics"
)

// Config controls sweep cadence and staleness.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// StaleAfter is how long a job may sit queued before it is considered
	// lost. It must comfortably exceed the normal trigger-to-claim latency.
	StaleAfter time.Duration
	// BatchLimit caps jobs re-triggered per sweep.
	BatchLimit int
}

// Store is the slice of the job store the reaper needs.
type Store interface {
	ListStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]insight.Job, error)
}

// Reaper periodically re-dispatches stale queued jobs.
type Reaper struct {
	store   Store
	trigger insight.Trigger
	clock   insight.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Reaper.
func New(store Store, trigger insight.Trigger, clock insight.Clock, cfg Config, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 50
	}
	return &Reaper{
		store:   store,
		trigger: trigger,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run blocks, sweeping on the configured interval until ctx finishes.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("reaper sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep re-triggers every stale queued job once and returns how many were
// dispatched. Individual trigger failures are logged and skipped; the next
// sweep picks those jobs up again.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.clock.Now().Add(-r.cfg.StaleAfter)
	stale, err := r.store.ListStaleQueued(ctx, cutoff, r.cfg.BatchLimit)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, job := range stale {
		if err := r.trigger.TriggerRun(ctx, job.ID); err != nil {
			r.logger.Warn("re-trigger failed",
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
			continue
		}
		dispatched++
		metrics.ObserveReaperRetrigger()
		r.logger.Info("stale job re-triggered",
			zap.String("job_id", job.ID),
			zap.Time("queued_since", job.UpdatedAt),
		)
	}
	return dispatched, nil
}

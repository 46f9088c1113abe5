// Package worker implements the run-job pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/prof-insights/internal/insight"
	"github.com/JakeFAU/prof-insights/internal/metrics"
)

// Config controls Pipeline behavior.
type Config struct {
	// Timeout bounds one pipeline execution end to end. When it expires the
	// job is force-marked error with a timeout reason.
	Timeout time.Duration
	// Topic, when set, receives a completion event per terminal write.
	Topic string
}

// Pipeline executes the scrape-then-analyze sequence for one job and
// persists the terminal state.
type Pipeline struct {
	jobs      insight.JobStore
	scraper   insight.Scraper
	analyzer  insight.Analyzer
	publisher insight.Publisher
	clock     insight.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Pipeline.
func New(
	jobs insight.JobStore,
	scraper insight.Scraper,
	analyzer insight.Analyzer,
	publisher insight.Publisher,
	clock insight.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Pipeline{
		jobs:      jobs,
		scraper:   scraper,
		analyzer:  analyzer,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Outcome summarizes one completed Run invocation.
type Outcome struct {
	JobID       string
	Status      insight.JobStatus
	ReviewCount int
	Duration    time.Duration
}

// Run executes the pipeline for jobID: load, claim, scrape, analyze,
// commit. It produces exactly one terminal state per successful claim; a
// caller that loses the claim gets ErrConflict and must not retry.
func (p *Pipeline) Run(ctx context.Context, jobID string) (Outcome, error) {
	start := p.clock.Now()

	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return Outcome{JobID: jobID}, fmt.Errorf("load job %s: %w", jobID, err)
	}

	claimed, err := p.claim(ctx, job)
	if err != nil {
		return Outcome{JobID: jobID}, err
	}

	metrics.IncActivePipelines()
	defer metrics.DecActivePipelines()

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	result, runErr := p.execute(runCtx, claimed)
	if runErr != nil {
		return p.fail(ctx, claimed, start, runErr)
	}
	return p.commit(ctx, claimed, start, result)
}

// claim transitions the job to running. The versioned write guarantees at
// most one invocation wins; losers see ErrConflict before any collaborator
// call is made.
func (p *Pipeline) claim(ctx context.Context, job insight.Job) (insight.Job, error) {
	if !job.Status.CanTransitionTo(insight.JobStatusRunning) {
		return insight.Job{}, fmt.Errorf("job %s is %s: %w", job.ID, job.Status, insight.ErrConflict)
	}
	job.Status = insight.JobStatusRunning
	job.UpdatedAt = p.clock.Now()
	claimed, err := p.jobs.Update(ctx, job)
	if err != nil {
		return insight.Job{}, fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	p.logger.Info("job claimed", zap.String("job_id", job.ID))
	return claimed, nil
}

func (p *Pipeline) execute(ctx context.Context, job insight.Job) (insight.JobResult, error) {
	scraped, err := p.scraper.Scrape(ctx, job.ProfessorName, job.University)
	if err != nil {
		return insight.JobResult{}, fmt.Errorf("scrape phase: %w", err)
	}
	if len(scraped.Reviews) == 0 {
		// An empty extraction is never marked complete.
		return insight.JobResult{}, fmt.Errorf(
			"scrape phase: %w for %s at %s", insight.ErrNoReviews, job.ProfessorName, job.University)
	}
	scraped = scraped.Normalize()
	metrics.ObserveReviews(len(scraped.Reviews))

	summary, err := p.analyzer.Summarize(ctx, scraped.Reviews, scraped.Stats, job.UserQuestion)
	if err != nil {
		return insight.JobResult{}, fmt.Errorf("analysis phase: %w", err)
	}

	return insight.JobResult{
		Reviews: scraped.Reviews,
		Stats:   scraped.Stats,
		Summary: summary,
	}, nil
}

func (p *Pipeline) commit(
	ctx context.Context,
	job insight.Job,
	start time.Time,
	result insight.JobResult,
) (Outcome, error) {
	job.Status = insight.JobStatusComplete
	job.Result = &result
	job.ErrorText = ""
	job.UpdatedAt = p.clock.Now()

	committed, err := p.jobs.Update(ctx, job)
	if err != nil {
		return Outcome{JobID: job.ID}, fmt.Errorf("commit job %s: %w", job.ID, err)
	}

	duration := p.clock.Now().Sub(start)
	metrics.ObserveJob(string(insight.JobStatusComplete), duration)
	p.publishCompletion(ctx, committed, len(result.Reviews))
	p.logger.Info("job complete",
		zap.String("job_id", job.ID),
		zap.Int("reviews", len(result.Reviews)),
		zap.Duration("duration", duration),
	)
	return Outcome{
		JobID:       job.ID,
		Status:      insight.JobStatusComplete,
		ReviewCount: len(result.Reviews),
		Duration:    duration,
	}, nil
}

// fail converts a pipeline error into a persisted error state. The write is
// best effort: if it fails too, the job stays stuck running, which is why
// the error below is logged loudly rather than swallowed.
func (p *Pipeline) fail(
	ctx context.Context,
	job insight.Job,
	start time.Time,
	runErr error,
) (Outcome, error) {
	errText := runErr.Error()
	if errors.Is(runErr, context.DeadlineExceeded) {
		errText = fmt.Sprintf("pipeline timed out after %s", p.cfg.Timeout)
	}

	job.Status = insight.JobStatusError
	job.Result = nil
	job.ErrorText = errText
	job.UpdatedAt = p.clock.Now()

	// the parent ctx may itself be done; the terminal write gets its own
	// short budget so cancellation of the request doesn't lose the state
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	failed, writeErr := p.jobs.Update(writeCtx, job)
	if writeErr != nil {
		p.logger.Error("terminal error write failed; job stuck running",
			zap.String("job_id", job.ID),
			zap.NamedError("run_error", runErr),
			zap.Error(writeErr),
		)
		return Outcome{JobID: job.ID}, fmt.Errorf("record failure for job %s: %w", job.ID, writeErr)
	}

	duration := p.clock.Now().Sub(start)
	metrics.ObserveJob(string(insight.JobStatusError), duration)
	p.publishCompletion(writeCtx, failed, 0)
	p.logger.Warn("job failed",
		zap.String("job_id", job.ID),
		zap.String("reason", errText),
		zap.Duration("duration", duration),
	)
	return Outcome{
		JobID:    job.ID,
		Status:   insight.JobStatusError,
		Duration: duration,
	}, runErr
}

func (p *Pipeline) publishCompletion(ctx context.Context, job insight.Job, reviewCount int) {
	if p.cfg.Topic == "" || p.publisher == nil {
		return
	}
	event := insight.CompletionEvent{
		JobID:       job.ID,
		Status:      job.Status,
		ReviewCount: reviewCount,
		ErrorText:   job.ErrorText,
		FinishedAt:  job.UpdatedAt,
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, event); err != nil {
		p.logger.Warn("completion publish failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// Package trigger notifies the worker endpoint that a job is ready to run.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/prof-insights/internal/insight"
)

// Config controls the HTTP trigger client.
type Config struct {
	// RunJobURL is the worker's run-job endpoint.
	RunJobURL string
	// Timeout bounds one trigger request. The run-job call itself runs for
	// the whole pipeline, so the sender only waits long enough to know the
	// request was accepted on the wire.
	Timeout time.Duration
}

// HTTPTrigger implements insight.Trigger with a single POST per job. It is
// deliberately at-most-once: no retry, no acknowledgment beyond the
// request being written. Recovery for lost triggers is the reaper's job.
type HTTPTrigger struct {
	cfg    Config
	client *http.Client
}

// New constructs an HTTPTrigger.
func New(cfg Config) *HTTPTrigger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPTrigger{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type runJobRequest struct {
	JobID string `json:"jobId"`
}

// TriggerRun posts the job id to the run-job endpoint. A non-2xx response
// is an error so callers can log it, but the job record is not touched.
func (t *HTTPTrigger) TriggerRun(ctx context.Context, jobID string) error {
	payload, err := json.Marshal(runJobRequest{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.RunJobURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send trigger for job %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("trigger for job %s rejected: %s", jobID, resp.Status)
	}
	return nil
}

var _ insight.Trigger = (*HTTPTrigger)(nil)

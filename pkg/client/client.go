// Package client is a small Go client for the insights service, including
// a poll-until-done helper for the async job flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Job statuses reported by the service.
const (
	StatusQueued   = "queued"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// JobRequest is the submission payload.
type JobRequest struct {
	ProfessorName string `json:"professorName"`
	University    string `json:"university"`
	UserQuestion  string `json:"userQuestion,omitempty"`
}

// Review is one scraped professor review.
type Review struct {
	Quality    float64  `json:"quality"`
	Difficulty float64  `json:"difficulty"`
	Course     string   `json:"course"`
	Date       string   `json:"date"`
	Comment    string   `json:"comment"`
	Tags       []string `json:"tags"`
	ThumbsUp   int      `json:"thumbsUp"`
	ThumbsDown int      `json:"thumbsDown"`
}

// ProfessorStats is the professor-level aggregate.
type ProfessorStats struct {
	OverallRating     float64 `json:"overallRating"`
	RatingCount       int     `json:"ratingCount"`
	WouldTakeAgainPct float64 `json:"wouldTakeAgainPct"`
	DifficultyLevel   float64 `json:"difficultyLevel"`
	Department        string  `json:"department"`
}

// JobResult is present once a job completes.
type JobResult struct {
	Reviews []Review       `json:"reviews"`
	Stats   ProfessorStats `json:"stats"`
	Summary string         `json:"summary"`
}

// Job is the record returned by check-job.
type Job struct {
	ID            string     `json:"jobId"`
	Status        string     `json:"status"`
	ProfessorName string     `json:"professorName"`
	University    string     `json:"university"`
	UserQuestion  string     `json:"userQuestion,omitempty"`
	Result        *JobResult `json:"result,omitempty"`
	ErrorText     string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Terminal reports whether the job has finished, in either direction.
func (j Job) Terminal() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// Config controls the client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the insights HTTP API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Submit starts a scrape job and returns its id.
func (c *Client) Submit(ctx context.Context, req JobRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var resp struct {
		JobID string `json:"jobId"`
	}
	if err := c.do(ctx, http.MethodPost, "/start-scrape", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("service returned no job id")
	}
	return resp.JobID, nil
}

// CheckJob fetches the current job record.
func (c *Client) CheckJob(ctx context.Context, jobID string) (Job, error) {
	var job Job
	path := "/check-job?id=" + url.QueryEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// PollUntilDone polls the job at a fixed interval until it reaches a
// terminal state, the context is canceled, or maxAttempts checks have been
// made. maxAttempts <= 0 means unbounded.
func (c *Client) PollUntilDone(ctx context.Context, jobID string, interval time.Duration, maxAttempts int) (Job, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		job, err := c.CheckJob(ctx, jobID)
		if err != nil {
			return Job{}, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		if job.Terminal() {
			return job, nil
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return job, fmt.Errorf("job %s still %s after %d checks", jobID, job.Status, attempt)
		}

		select {
		case <-ctx.Done():
			return Job{}, fmt.Errorf("polling canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

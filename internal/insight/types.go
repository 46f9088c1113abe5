// Package insight defines core types shared across subsystems.
package insight

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a scrape-and-analyze job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusError    JobStatus = "error"
)

// Terminal reports whether the status allows no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// step. Transitions never reverse and never skip the queued state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning
	case JobStatusRunning:
		return next == JobStatusComplete || next == JobStatusError
	default:
		return false
	}
}

// MissingFieldPlaceholder is stored for optional string fields the scrape
// phase could not observe.
const MissingFieldPlaceholder = "N/A"

// Review is one extracted student review of a professor.
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

// Normalize fills deterministic defaults for optional fields so a missing
// field never fails the pipeline.
func (r Review) Normalize() Review {
	if strings.TrimSpace(r.Course) == "" {
		r.Course = MissingFieldPlaceholder
	}
	if strings.TrimSpace(r.Date) == "" {
		r.Date = MissingFieldPlaceholder
	}
	if strings.TrimSpace(r.Comment) == "" {
		r.Comment = MissingFieldPlaceholder
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return r
}

// ProfessorStats aggregates the professor's page-level numbers.
type ProfessorStats struct {
	OverallRating     float64 `json:"overallRating"`
	RatingCount       int     `json:"ratingCount"`
	WouldTakeAgainPct float64 `json:"wouldTakeAgainPct"`
	DifficultyLevel   float64 `json:"difficultyLevel"`
	Department        string  `json:"department"`
}

// Normalize fills deterministic defaults for fields the scrape phase could
// not observe.
func (p ProfessorStats) Normalize() ProfessorStats {
	if strings.TrimSpace(p.Department) == "" {
		p.Department = MissingFieldPlaceholder
	}
	return p
}

// JobResult is the structured payload written when a job completes.
type JobResult struct {
	Reviews []Review       `json:"reviews"`
	Stats   ProfessorStats `json:"stats"`
	Summary string         `json:"summary"`
}

// Job represents the metadata persisted for each submitted request.
type Job struct {
	ID            string     `json:"jobId"`
	Status        JobStatus  `json:"status"`
	ProfessorName string     `json:"professorName"`
	University    string     `json:"university"`
	UserQuestion  string     `json:"userQuestion,omitempty"`
	Result        *JobResult `json:"result,omitempty"`
	ErrorText     string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// Version increments on every store write; writers must present the
	// version they read, so a stale writer loses instead of clobbering.
	Version int64 `json:"version"`
}

// JobRequest captures a submission before a Job exists.
type JobRequest struct {
	ProfessorName string `json:"professorName"`
	University    string `json:"university"`
	UserQuestion  string `json:"userQuestion,omitempty"`
}

// Validate enforces required submission fields after trimming.
func (r JobRequest) Validate() error {
	if strings.TrimSpace(r.ProfessorName) == "" {
		return &ValidationError{Field: "professorName"}
	}
	if strings.TrimSpace(r.University) == "" {
		return &ValidationError{Field: "university"}
	}
	return nil
}

// ScrapeResult is the Scraper contract output: extracted reviews plus the
// professor-level aggregate.
type ScrapeResult struct {
	Reviews []Review       `json:"reviews"`
	Stats   ProfessorStats `json:"stats"`
}

// Normalize applies field defaults across the whole result.
func (s ScrapeResult) Normalize() ScrapeResult {
	out := ScrapeResult{
		Reviews: make([]Review, len(s.Reviews)),
		Stats:   s.Stats.Normalize(),
	}
	for i, r := range s.Reviews {
		out.Reviews[i] = r.Normalize()
	}
	return out
}

// CompletionEvent is published when a job reaches a terminal state.
type CompletionEvent struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	ReviewCount int       `json:"review_count"`
	ErrorText   string    `json:"error_text,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

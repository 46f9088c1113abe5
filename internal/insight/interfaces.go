package insight

import (
	"context"
	"time"
)

// JobStore persists job records keyed by job id.
//
// Writes are whole-record overwrites. Update is conditional on Job.Version:
// implementations must reject the write with ErrConflict when the stored
// version differs from the version the caller read. Any operation may fail
// with ErrUnavailable on connectivity loss; callers must not assume retries
// happen automatically.
type JobStore interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, jobID string) (Job, error)
	Update(ctx context.Context, job Job) (Job, error)
	Delete(ctx context.Context, jobID string) error
}

// StaleScanner lists queued jobs whose last update is older than the
// cutoff. The reaper uses it to find submissions whose trigger was lost.
// Store providers implement it alongside JobStore.
type StaleScanner interface {
	ListStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]Job, error)
}

// Scraper is the scraping collaborator: it extracts reviews and the
// professor aggregate for a subject, or fails. Internal retries and
// extraction strategy are its own concern; the pipeline only sees one
// success or failure.
type Scraper interface {
	Scrape(ctx context.Context, professorName, university string) (ScrapeResult, error)
}

// Analyzer is the analysis collaborator: it turns extracted data into a
// textual summary, optionally steered by the user's question.
type Analyzer interface {
	Summarize(ctx context.Context, reviews []Review, stats ProfessorStats, question string) (string, error)
}

// Trigger notifies the worker endpoint that a job is ready to run.
type Trigger interface {
	TriggerRun(ctx context.Context, jobID string) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw scrape artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

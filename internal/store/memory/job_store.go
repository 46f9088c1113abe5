// Package memory provides an in-memory job store for development/testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/prof-insights/internal/insight"
)

// JobStore implements insight.JobStore with a mutex-guarded map.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]insight.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]insight.Job)}
}

// Create stores a new job record. The id must not already exist.
func (s *JobStore) Create(_ context.Context, job insight.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return insight.ErrConflict
	}
	job.Version = 1
	s.jobs[job.ID] = job
	return nil
}

// Get fetches a job by id.
func (s *JobStore) Get(_ context.Context, jobID string) (insight.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return insight.Job{}, insight.ErrNotFound
	}
	return job, nil
}

// Update overwrites the record if the caller presents the stored version.
// A stale version fails with ErrConflict and leaves the record untouched.
func (s *JobStore) Update(_ context.Context, job insight.Job) (insight.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok {
		return insight.Job{}, insight.ErrNotFound
	}
	if current.Version != job.Version {
		return insight.Job{}, insight.ErrConflict
	}
	job.Version++
	s.jobs[job.ID] = job
	return job, nil
}

// Delete removes a job record. Deleting an unknown id is not an error.
func (s *JobStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

// ListStaleQueued returns queued jobs not updated since olderThan, oldest
// first, capped at limit.
func (s *JobStore) ListStaleQueued(_ context.Context, olderThan time.Time, limit int) ([]insight.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stale []insight.Job
	for _, job := range s.jobs {
		if job.Status == insight.JobStatusQueued && job.UpdatedAt.Before(olderThan) {
			stale = append(stale, job)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

// Package redis provides the Redis-backed job store used in production.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/prof-insights/internal/insight"
)

const (
	keyPrefix   = "job:"
	queuedIndex = "jobs:queued"
)

// Config controls JobStore behavior.
type Config struct {
	// TTL bounds how long a job record lives in Redis. Zero disables expiry.
	TTL time.Duration
}

// JobStore implements insight.JobStore on top of Redis. Records are single
// JSON values keyed by job id; a sorted set of queued ids (scored by last
// update time) backs the reaper's stale scan.
type JobStore struct {
	client redis.UniversalClient
	cfg    Config
}

// NewJobStore constructs a JobStore around an existing client.
func NewJobStore(client redis.UniversalClient, cfg Config) *JobStore {
	return &JobStore{client: client, cfg: cfg}
}

func jobKey(jobID string) string {
	return keyPrefix + jobID
}

// Create stores a new job record. The id must not already exist.
func (s *JobStore) Create(ctx context.Context, job insight.Job) error {
	job.Version = 1
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	set, err := s.client.SetNX(ctx, jobKey(job.ID), payload, s.cfg.TTL).Result()
	if err != nil {
		return unavailable("create job", err)
	}
	if !set {
		return insight.ErrConflict
	}
	if job.Status == insight.JobStatusQueued {
		err := s.client.ZAdd(ctx, queuedIndex, redis.Z{
			Score:  float64(job.UpdatedAt.Unix()),
			Member: job.ID,
		}).Err()
		if err != nil {
			return unavailable("index queued job", err)
		}
	}
	return nil
}

// Get fetches a job by id.
func (s *JobStore) Get(ctx context.Context, jobID string) (insight.Job, error) {
	raw, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return insight.Job{}, insight.ErrNotFound
		}
		return insight.Job{}, unavailable("get job", err)
	}
	var job insight.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return insight.Job{}, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return job, nil
}

// Update overwrites the record if the caller presents the stored version.
// The check-and-set runs under WATCH so a concurrent writer forces a
// conflict instead of a lost update.
func (s *JobStore) Update(ctx context.Context, job insight.Job) (insight.Job, error) {
	key := jobKey(job.ID)
	var updated insight.Job

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return insight.ErrNotFound
			}
			return err
		}
		var current insight.Job
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("unmarshal job %s: %w", job.ID, err)
		}
		if current.Version != job.Version {
			return insight.ErrConflict
		}

		updated = job
		updated.Version++
		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.cfg.TTL)
			if updated.Status == insight.JobStatusQueued {
				pipe.ZAdd(ctx, queuedIndex, redis.Z{
					Score:  float64(updated.UpdatedAt.Unix()),
					Member: updated.ID,
				})
			} else {
				pipe.ZRem(ctx, queuedIndex, updated.ID)
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, insight.ErrNotFound), errors.Is(err, insight.ErrConflict):
		return insight.Job{}, err
	case errors.Is(err, redis.TxFailedErr):
		// Key changed between read and write; same outcome as a version miss.
		return insight.Job{}, insight.ErrConflict
	default:
		return insight.Job{}, unavailable("update job", err)
	}
}

// Delete removes a job record and its index entry.
func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, jobKey(jobID))
		pipe.ZRem(ctx, queuedIndex, jobID)
		return nil
	})
	if err != nil {
		return unavailable("delete job", err)
	}
	return nil
}

// ListStaleQueued returns queued jobs not updated since olderThan, oldest
// first, capped at limit. Index entries whose record expired are pruned as
// they are encountered.
func (s *JobStore) ListStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]insight.Job, error) {
	ids, err := s.client.ZRangeByScore(ctx, queuedIndex, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(olderThan.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, unavailable("scan queued index", err)
	}

	var stale []insight.Job
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, insight.ErrNotFound) {
			// record expired under its TTL; drop the dangling index entry
			if remErr := s.client.ZRem(ctx, queuedIndex, id).Err(); remErr != nil {
				return nil, unavailable("prune queued index", remErr)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if job.Status == insight.JobStatusQueued {
			stale = append(stale, job)
		}
	}
	return stale, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, insight.ErrUnavailable, err)
}

// Package postgres provides a Postgres-backed job store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/prof-insights/internal/insight"
)

// Schema for the single jobs table:
//
//	CREATE TABLE jobs (
//	    id         TEXT PRIMARY KEY,
//	    status     TEXT NOT NULL,
//	    record     JSONB NOT NULL,
//	    version    BIGINT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// JobStore implements insight.JobStore on a jobs table. The whole record is
// kept as JSONB; id/status/version/updated_at columns exist for predicates.
type JobStore struct {
	pool dbPool
}

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg Config) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewJobStoreWithPool(pool dbPool) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a new job row. The id must not already exist.
func (s *JobStore) Create(ctx context.Context, job insight.Job) error {
	job.Version = 1
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, record, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		job.ID, string(job.Status), record, job.Version, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return unavailable("insert job", err)
	}
	if tag.RowsAffected() == 0 {
		return insight.ErrConflict
	}
	return nil
}

// Get fetches a job by id.
func (s *JobStore) Get(ctx context.Context, jobID string) (insight.Job, error) {
	var record []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM jobs WHERE id = $1`, jobID).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return insight.Job{}, insight.ErrNotFound
		}
		return insight.Job{}, unavailable("select job", err)
	}
	var job insight.Job
	if err := json.Unmarshal(record, &job); err != nil {
		return insight.Job{}, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return job, nil
}

// Update overwrites the row if the caller presents the stored version. A
// stale version fails with ErrConflict and leaves the row untouched.
func (s *JobStore) Update(ctx context.Context, job insight.Job) (insight.Job, error) {
	updated := job
	updated.Version++
	record, err := json.Marshal(updated)
	if err != nil {
		return insight.Job{}, fmt.Errorf("marshal job: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, record = $3, version = $4, updated_at = $5
		 WHERE id = $1 AND version = $6`,
		job.ID, string(updated.Status), record, updated.Version, updated.UpdatedAt, job.Version,
	)
	if err != nil {
		return insight.Job{}, unavailable("update job", err)
	}
	if tag.RowsAffected() == 0 {
		// distinguish a missing row from a lost race
		if _, getErr := s.Get(ctx, job.ID); getErr != nil {
			if errors.Is(getErr, insight.ErrNotFound) {
				return insight.Job{}, insight.ErrNotFound
			}
			return insight.Job{}, getErr
		}
		return insight.Job{}, insight.ErrConflict
	}
	return updated, nil
}

// Delete removes a job row. Deleting an unknown id is not an error.
func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID); err != nil {
		return unavailable("delete job", err)
	}
	return nil
}

// ListStaleQueued returns queued jobs not updated since olderThan, oldest
// first, capped at limit.
func (s *JobStore) ListStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]insight.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM jobs
		 WHERE status = $1 AND updated_at < $2
		 ORDER BY updated_at ASC
		 LIMIT $3`,
		string(insight.JobStatusQueued), olderThan, limit,
	)
	if err != nil {
		return nil, unavailable("select stale jobs", err)
	}
	defer rows.Close()

	var stale []insight.Job
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		var job insight.Job
		if err := json.Unmarshal(record, &job); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		stale = append(stale, job)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate stale jobs", err)
	}
	return stale, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, insight.ErrUnavailable, err)
}

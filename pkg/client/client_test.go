package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/start-scrape", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req JobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Ada Lovelace", req.ProfessorName)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": "job-1", "message": "queued"})
	}))
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL})
	jobID, err := c.Submit(context.Background(), JobRequest{
		ProfessorName: "Ada Lovelace",
		University:    "State University",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
}

func TestSubmitValidationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "professorName is required"})
	}))
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Submit(context.Background(), JobRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "professorName")
}

func TestCheckJobSendsAPIKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sekrit", r.Header.Get("X-API-Key"))
		require.Equal(t, "job-1", r.URL.Query().Get("id"))
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", Status: StatusRunning})
	}))
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL, APIKey: "sekrit"})
	job, err := c.CheckJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
}

func TestPollUntilDone(t *testing.T) {
	t.Parallel()

	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := StatusRunning
		var result *JobResult
		if checks.Add(1) >= 3 {
			status = StatusComplete
			result = &JobResult{Summary: "Good professor."}
		}
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", Status: status, Result: result})
	}))
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL})
	job, err := c.PollUntilDone(context.Background(), "job-1", 10*time.Millisecond, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "Good professor.", job.Result.Summary)
	assert.GreaterOrEqual(t, checks.Load(), int32(3))
}

func TestPollUntilDoneMaxAttempts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", Status: StatusQueued})
	}))
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL})
	job, err := c.PollUntilDone(context.Background(), "job-1", time.Millisecond, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 checks")
	assert.Equal(t, StatusQueued, job.Status)
}

func TestPollUntilDoneCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", Status: StatusQueued})
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.PollUntilDone(ctx, "job-1", time.Hour, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJobTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, Job{Status: StatusQueued}.Terminal())
	assert.False(t, Job{Status: StatusRunning}.Terminal())
	assert.True(t, Job{Status: StatusComplete}.Terminal())
	assert.True(t, Job{Status: StatusError}.Terminal())
}

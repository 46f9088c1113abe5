package trigger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTriggerRunPostsJobID(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	trig := New(Config{RunJobURL: srv.URL})
	require.NoError(t, trig.TriggerRun(context.Background(), "job-42"))

	require.Equal(t, "application/json", gotContentType)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Equal(t, "job-42", payload["jobId"])
}

func TestTriggerRunRejectedStatusIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	trig := New(Config{RunJobURL: srv.URL})
	err := trig.TriggerRun(context.Background(), "job-42")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
}

func TestTriggerRunUnreachableEndpointIsError(t *testing.T) {
	t.Parallel()

	trig := New(Config{RunJobURL: "http://localhost:1/run-job", Timeout: 100 * time.Millisecond})
	require.Error(t, trig.TriggerRun(context.Background(), "job-42"))
}

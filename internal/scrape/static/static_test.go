package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<html><body>
<a href="/professor/42">Ada Lovelace</a>
</body></html>`

const professorPage = `<html><body>
<div class="RatingValue__Numerator-x">4.0</div>
<div class="RatingValue__NumRatings-x"><a href="#">2 ratings</a></div>
<div class="Rating__RatingBody-x">
  <div class="CardNumRating__CardNumRatingNumber-x">4.5</div>
  <div class="CardNumRating__CardNumRatingNumber-x">2.5</div>
  <div class="Comments__StyledComments-x">Great professor.</div>
</div>
<div class="Rating__RatingBody-x">
  <div class="CardNumRating__CardNumRatingNumber-x">3.5</div>
  <div class="CardNumRating__CardNumRatingNumber-x">3.0</div>
  <div class="Comments__StyledComments-x">Tough grader.</div>
</div>
</body></html>`

func newSite(t *testing.T, professorBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/professors", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(searchPage))
	})
	mux.HandleFunc("/professor/42", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(professorBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeFollowsFirstResult(t *testing.T) {
	srv := newSite(t, professorPage)

	s := New(Config{BaseURL: srv.URL, UserAgent: "insights-test", Timeout: 5 * time.Second})
	result, err := s.Scrape(context.Background(), "Ada Lovelace", "State University")
	require.NoError(t, err)

	require.Len(t, result.Reviews, 2)
	assert.InDelta(t, 4.0, result.Stats.OverallRating, 0.001)
	assert.Equal(t, 2, result.Stats.RatingCount)
	assert.Equal(t, "Great professor.", result.Reviews[0].Comment)
}

func TestScrapeEmptyPageIsError(t *testing.T) {
	srv := newSite(t, "<html><body><div id='app'></div></body></html>")

	s := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := s.Scrape(context.Background(), "Ada Lovelace", "State University")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ratings in static page")
}

func TestScrapeNoSearchResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/professors", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>nothing here</body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := s.Scrape(context.Background(), "Nobody", "Nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no professor results")
}

func TestScrapeServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := s.Scrape(context.Background(), "Ada Lovelace", "State University")
	require.Error(t, err)
}

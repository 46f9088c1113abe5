// Package static scrapes professor pages with a plain HTTP collector.
package static

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/prof-insights/internal/insight"
	"github.com/JakeFAU/prof-insights/internal/scrape"
)

// Config controls collector behavior.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Strategy fetches the search and professor pages with Colly and parses
// the static HTML. Pages that render their ratings client-side come back
// empty here and are handled by the headless strategy instead.
type Strategy struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a static strategy.
func New(cfg Config) *Strategy {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Strategy{cfg: cfg, baseCollector: c}
}

var _ scrape.Strategy = (*Strategy)(nil)

func (s *Strategy) Name() string { return "static" }

// Scrape searches for the professor, follows the first result, and parses
// the ratings out of the returned HTML.
func (s *Strategy) Scrape(ctx context.Context, professorName, university string) (insight.ScrapeResult, error) {
	searchBody, err := s.fetch(ctx, scrape.SearchURL(s.cfg.BaseURL, professorName, university))
	if err != nil {
		return insight.ScrapeResult{}, fmt.Errorf("fetch search page: %w", err)
	}

	profURL, err := scrape.FirstProfessorLink(s.cfg.BaseURL, bytes.NewReader(searchBody))
	if err != nil {
		return insight.ScrapeResult{}, err
	}

	profBody, err := s.fetch(ctx, profURL)
	if err != nil {
		return insight.ScrapeResult{}, fmt.Errorf("fetch professor page: %w", err)
	}

	result, err := scrape.ParsePage(bytes.NewReader(profBody))
	if err != nil {
		return insight.ScrapeResult{}, err
	}
	if len(result.Reviews) == 0 {
		return insight.ScrapeResult{}, fmt.Errorf("no ratings in static page %s", profURL)
	}
	return result, nil
}

func (s *Strategy) fetch(ctx context.Context, url string) ([]byte, error) {
	collector := s.baseCollector.Clone()
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	collector.SetRequestTimeout(s.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("response from %s: %w", url, fetchErr)
		}
		return body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

// Package headless scrapes professor pages with a real browser so that
// client-rendered ratings are visible.
package headless

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/prof-insights/internal/insight"
	"github.com/JakeFAU/prof-insights/internal/scrape"
)

const loadMoreSelector = `button[class*="PaginationButton"]`

// Config controls the behavior of the headless strategy.
type Config struct {
	BaseURL            string
	UserAgent          string
	MaxParallel        int
	NavigationTimeout  time.Duration
	MaxLoadMoreClicks  int
	ArchiveContentType string
}

// Strategy drives headless Chrome through the search flow, clicking the
// "load more" button a bounded number of times before snapshotting the DOM.
type Strategy struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	archive     insight.BlobStore
	logger      *zap.Logger
}

// New creates a headless strategy backed by chromedp. The archive is
// optional; when set, the rendered HTML of each professor page is stored.
func New(cfg Config, archive insight.BlobStore, logger *zap.Logger) (*Strategy, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.MaxLoadMoreClicks < 0 {
		cfg.MaxLoadMoreClicks = 0
	}
	if cfg.ArchiveContentType == "" {
		cfg.ArchiveContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Strategy{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		archive:     archive,
		logger:      logger,
	}, nil
}

var _ scrape.Strategy = (*Strategy)(nil)

func (s *Strategy) Name() string { return "headless" }

// Close cancels the allocator context.
func (s *Strategy) Close() {
	s.allocCancel()
}

// Scrape renders the professor page in a browser and parses the DOM once
// the bounded load-more expansion is done.
func (s *Strategy) Scrape(ctx context.Context, professorName, university string) (insight.ScrapeResult, error) {
	if err := s.acquire(ctx); err != nil {
		return insight.ScrapeResult{}, err
	}
	defer s.release()

	taskCtx, taskCancel := chromedp.NewContext(s.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, s.cfg.NavigationTimeout)
	defer cancel()

	html, err := s.renderProfessorPage(taskCtx, professorName, university)
	if err != nil {
		return insight.ScrapeResult{}, err
	}

	s.archivePage(ctx, professorName, university, html)

	result, err := scrape.ParsePage(strings.NewReader(html))
	if err != nil {
		return insight.ScrapeResult{}, err
	}
	return result, nil
}

func (s *Strategy) renderProfessorPage(ctx context.Context, professorName, university string) (string, error) {
	var (
		searchHTML string
		html       string
	)
	searchActions := []chromedp.Action{
		s.networkSetupAction(),
		chromedp.Navigate(scrape.SearchURL(s.cfg.BaseURL, professorName, university)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &searchHTML, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, searchActions...); err != nil {
		return "", fmt.Errorf("render search page: %w", err)
	}

	profURL, err := scrape.FirstProfessorLink(s.cfg.BaseURL, strings.NewReader(searchHTML))
	if err != nil {
		return "", err
	}

	profActions := []chromedp.Action{
		chromedp.Navigate(profURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		s.loadAllRatingsAction(),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, profActions...); err != nil {
		return "", fmt.Errorf("render professor page: %w", err)
	}
	return html, nil
}

// loadAllRatingsAction clicks the pagination button until it disappears or
// the click budget runs out.
func (s *Strategy) loadAllRatingsAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 0; i < s.cfg.MaxLoadMoreClicks; i++ {
			var visible bool
			probe := fmt.Sprintf(`document.querySelector(%q) !== null`, loadMoreSelector)
			if err := chromedp.Evaluate(probe, &visible).Do(ctx); err != nil {
				return fmt.Errorf("probe load-more button: %w", err)
			}
			if !visible {
				return nil
			}
			if err := chromedp.Click(loadMoreSelector, chromedp.ByQuery).Do(ctx); err != nil {
				return fmt.Errorf("click load-more button: %w", err)
			}
			if err := chromedp.Sleep(750 * time.Millisecond).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Strategy) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// archivePage stores the rendered HTML snapshot. Failures are logged and
// never fail the scrape.
func (s *Strategy) archivePage(ctx context.Context, professorName, university, html string) {
	if s.archive == nil {
		return
	}
	path := ArchivePath(professorName, university, time.Now().UTC())
	location, err := s.archive.PutObject(ctx, path, s.cfg.ArchiveContentType, []byte(html))
	if err != nil {
		s.logger.Warn("html archive write failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("archived rendered page", zap.String("location", location))
}

// ArchivePath builds a stable object path for a rendered page snapshot.
func ArchivePath(professorName, university string, at time.Time) string {
	slug := func(raw string) string {
		raw = strings.ToLower(strings.TrimSpace(raw))
		return strings.ReplaceAll(raw, " ", "-")
	}
	return fmt.Sprintf("pages/%s/%s/%s.html",
		slug(university), slug(professorName), at.Format("20060102T150405Z"))
}

func (s *Strategy) acquire(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	select {
	case s.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (s *Strategy) release() {
	if s.limiter == nil {
		return
	}
	select {
	case <-s.limiter:
	default:
	}
}

// Package scrape extracts professor reviews from rating sites.
package scrape

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/prof-insights/internal/insight"
)

// Strategy is one way of obtaining a professor's review page. Strategies
// are tried in priority order; a strategy that cannot extract any ratings
// returns an error so the next one gets a chance.
type Strategy interface {
	Name() string
	Scrape(ctx context.Context, professorName, university string) (insight.ScrapeResult, error)
}

// Scraper implements insight.Scraper by delegating to an ordered list of
// strategies. The first strategy to succeed wins.
type Scraper struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New builds a Scraper. Strategies are tried in the order given.
func New(logger *zap.Logger, strategies ...Strategy) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{strategies: strategies, logger: logger}
}

var _ insight.Scraper = (*Scraper)(nil)

// Scrape tries each strategy until one returns a result. If every strategy
// fails the errors are joined so the caller sees the full chain.
func (s *Scraper) Scrape(ctx context.Context, professorName, university string) (insight.ScrapeResult, error) {
	if len(s.strategies) == 0 {
		return insight.ScrapeResult{}, errors.New("no scrape strategies configured")
	}

	var failures []error
	for _, strategy := range s.strategies {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		result, err := strategy.Scrape(ctx, professorName, university)
		if err != nil {
			s.logger.Warn("scrape strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.String("professor", professorName),
				zap.Error(err),
			)
			failures = append(failures, fmt.Errorf("%s: %w", strategy.Name(), err))
			continue
		}
		s.logger.Info("scrape strategy succeeded",
			zap.String("strategy", strategy.Name()),
			zap.Int("reviews", len(result.Reviews)),
		)
		return result, nil
	}
	return insight.ScrapeResult{}, fmt.Errorf("all scrape strategies failed: %w", errors.Join(failures...))
}

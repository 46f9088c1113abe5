package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/prof-insights/internal/analyze"
	"github.com/JakeFAU/prof-insights/internal/api"
	blobgcs "github.com/JakeFAU/prof-insights/internal/blob/gcs"
	blobmemory "github.com/JakeFAU/prof-insights/internal/blob/memory"
	"github.com/JakeFAU/prof-insights/internal/clock/system"
	"github.com/JakeFAU/prof-insights/internal/config"
	"github.com/JakeFAU/prof-insights/internal/id/uuid"
	"github.com/JakeFAU/prof-insights/internal/insight"
	"github.com/JakeFAU/prof-insights/internal/logging"
	"github.com/JakeFAU/prof-insights/internal/metrics"
	memorypublisher "github.com/JakeFAU/prof-insights/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/prof-insights/internal/publisher/pubsub"
	"github.com/JakeFAU/prof-insights/internal/reaper"
	"github.com/JakeFAU/prof-insights/internal/scrape"
	"github.com/JakeFAU/prof-insights/internal/scrape/headless"
	"github.com/JakeFAU/prof-insights/internal/scrape/static"
	memorystore "github.com/JakeFAU/prof-insights/internal/store/memory"
	postgresstore "github.com/JakeFAU/prof-insights/internal/store/postgres"
	redisstore "github.com/JakeFAU/prof-insights/internal/store/redis"
	"github.com/JakeFAU/prof-insights/internal/trigger"
	"github.com/JakeFAU/prof-insights/internal/worker"
)

// jobStore is what serve needs from a store provider: the record store
// plus the stale scan the reaper runs on.
type jobStore interface {
	insight.JobStore
	insight.StaleScanner
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the insights HTTP service.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs, closeStore, err := buildJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	trig := trigger.New(trigger.Config{
		RunJobURL: cfg.Trigger.RunJobURL,
		Timeout:   time.Duration(cfg.Trigger.TimeoutSeconds) * time.Second,
	})

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}

	scraper, closeScraper, err := buildScraper(cfg, archive, logger)
	if err != nil {
		return err
	}
	defer closeScraper()

	if cfg.Analyze.APIKey == "" {
		return fmt.Errorf("analyze.api_key must be set")
	}
	analyzer, err := analyze.New(ctx, analyze.Config{
		APIKey:      cfg.Analyze.APIKey,
		Model:       cfg.Analyze.Model,
		Temperature: float32(cfg.Analyze.Temperature),
	})
	if err != nil {
		return fmt.Errorf("analyzer init: %w", err)
	}
	defer func() {
		if closeErr := analyzer.Close(); closeErr != nil {
			logger.Warn("analyzer close failed", zap.Error(closeErr))
		}
	}()

	publisher, closePublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	clock := system.New()
	idGen := uuid.New()

	pipeline := worker.New(jobs, scraper, analyzer, publisher, clock, worker.Config{
		Timeout: cfg.PipelineTimeout(),
		Topic:   cfg.PubSub.TopicName,
	}, logger.Named("worker"))

	if cfg.Reaper.Enabled {
		sweeper := reaper.New(jobs, trig, clock, reaper.Config{
			Interval:   time.Duration(cfg.Reaper.IntervalSeconds) * time.Second,
			StaleAfter: time.Duration(cfg.Reaper.StaleAfterSecs) * time.Second,
		}, logger.Named("reaper"))
		go sweeper.Run(ctx)
	}

	apiServer := api.NewServer(jobs, pipeline, trig, idGen, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

func buildJobStore(ctx context.Context, cfg config.Config) (jobStore, func(), error) {
	switch cfg.Store.Provider {
	case "memory":
		return memorystore.NewJobStore(), func() {}, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		store := redisstore.NewJobStore(client, redisstore.Config{TTL: cfg.JobTTL()})
		return store, func() { _ = client.Close() }, nil
	case "postgres":
		store, err := postgresstore.NewJobStore(ctx, postgresstore.Config{DSN: cfg.Store.PostgresDSN})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store init: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

func buildArchive(ctx context.Context, cfg config.Config) (insight.BlobStore, error) {
	switch cfg.Archive.Provider {
	case "", "none":
		return nil, nil
	case "memory":
		return blobmemory.NewBlobStore(), nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init: %w", err)
		}
		return blobgcs.New(client, blobgcs.Config{
			Bucket: cfg.Archive.GCSBucket,
			Prefix: cfg.Archive.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Archive.Provider)
	}
}

func buildScraper(cfg config.Config, archive insight.BlobStore, logger *zap.Logger) (insight.Scraper, func(), error) {
	strategies := []scrape.Strategy{
		static.New(static.Config{
			BaseURL:   cfg.Scrape.BaseURL,
			UserAgent: cfg.Scrape.UserAgent,
			Timeout:   time.Duration(cfg.Scrape.TimeoutSeconds) * time.Second,
		}),
	}
	closeFn := func() {}

	if cfg.Scrape.HeadlessEnabled {
		browser, err := headless.New(headless.Config{
			BaseURL:            cfg.Scrape.BaseURL,
			UserAgent:          cfg.Scrape.UserAgent,
			MaxParallel:        2,
			NavigationTimeout:  time.Duration(cfg.Scrape.NavTimeoutSeconds) * time.Second,
			MaxLoadMoreClicks:  cfg.Scrape.MaxLoadMoreClicks,
			ArchiveContentType: cfg.Archive.ContentType,
		}, archive, logger.Named("headless"))
		if err != nil {
			logger.Warn("headless strategy init failed; continuing with static only", zap.Error(err))
		} else {
			strategies = append(strategies, browser)
			closeFn = browser.Close
		}
	}

	return scrape.New(logger.Named("scrape"), strategies...), closeFn, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (insight.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" {
		return memorypublisher.New(), func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client init: %w", err)
	}
	pub, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() {
		if closeErr := pub.Close(); closeErr != nil {
			logger.Warn("pubsub close failed", zap.Error(closeErr))
		}
	}, nil
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Store   StoreConfig   `mapstructure:"store"`
	Trigger TriggerConfig `mapstructure:"trigger"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Analyze AnalyzeConfig `mapstructure:"analyze"`
	Reaper  ReaperConfig  `mapstructure:"reaper"`
	Archive ArchiveConfig `mapstructure:"archive"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// StoreConfig selects and configures the job store provider.
type StoreConfig struct {
	Provider      string `mapstructure:"provider"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	TTLHours      int    `mapstructure:"ttl_hours"`
}

// TriggerConfig points the submission service at the worker endpoint.
type TriggerConfig struct {
	RunJobURL      string `mapstructure:"run_job_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// WorkerConfig governs the run-job pipeline.
type WorkerConfig struct {
	PipelineTimeoutSeconds int `mapstructure:"pipeline_timeout_seconds"`
}

// ScrapeConfig configures the review extraction strategies.
type ScrapeConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	HeadlessEnabled   bool   `mapstructure:"headless_enabled"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	MaxLoadMoreClicks int    `mapstructure:"max_load_more_clicks"`
	BaseURL           string `mapstructure:"base_url"`
}

// AnalyzeConfig configures the summary generation client.
type AnalyzeConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

// ReaperConfig controls the stale-queued reconciliation sweep.
type ReaperConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	StaleAfterSecs  int  `mapstructure:"stale_after_seconds"`
}

// ArchiveConfig sets paths and content types for raw HTML persistence.
type ArchiveConfig struct {
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for completion event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROFINSIGHTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.ttl_hours", 24)
	v.SetDefault("trigger.run_job_url", "http://localhost:8080/run-job")
	v.SetDefault("trigger.timeout_seconds", 10)
	v.SetDefault("worker.pipeline_timeout_seconds", 300)
	v.SetDefault("scrape.user_agent", "prof-insights-bot/0.1")
	v.SetDefault("scrape.timeout_seconds", 20)
	v.SetDefault("scrape.headless_enabled", true)
	v.SetDefault("scrape.nav_timeout_seconds", 45)
	v.SetDefault("scrape.max_load_more_clicks", 5)
	v.SetDefault("scrape.base_url", "https://www.ratemyprofessors.com")
	v.SetDefault("analyze.model", "gemini-1.5-flash")
	v.SetDefault("analyze.temperature", 0.2)
	v.SetDefault("reaper.enabled", true)
	v.SetDefault("reaper.interval_seconds", 60)
	v.SetDefault("reaper.stale_after_seconds", 120)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Store.Provider {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("store.provider must be one of memory, redis, postgres")
	}
	if c.Store.Provider == "redis" && c.Store.RedisAddr == "" {
		return fmt.Errorf("store.redis_addr must be set when store.provider is redis")
	}
	if c.Store.Provider == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("store.postgres_dsn must be set when store.provider is postgres")
	}
	if c.Trigger.RunJobURL == "" {
		return fmt.Errorf("trigger.run_job_url must be set")
	}
	if c.Worker.PipelineTimeoutSeconds <= 0 {
		return fmt.Errorf("worker.pipeline_timeout_seconds must be > 0")
	}
	if c.Scrape.MaxLoadMoreClicks < 0 {
		return fmt.Errorf("scrape.max_load_more_clicks must be >= 0")
	}
	if c.Reaper.Enabled && c.Reaper.IntervalSeconds <= 0 {
		return fmt.Errorf("reaper.interval_seconds must be > 0 when the reaper is enabled")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// JobTTL converts the configured store TTL into a duration. Zero disables
// expiry.
func (c Config) JobTTL() time.Duration {
	return time.Duration(c.Store.TTLHours) * time.Hour
}

// PipelineTimeout bounds one run-job execution.
func (c Config) PipelineTimeout() time.Duration {
	return time.Duration(c.Worker.PipelineTimeoutSeconds) * time.Second
}

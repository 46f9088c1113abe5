package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
store:
  provider: redis
  redis_addr: redis:6379
  ttl_hours: 48
trigger:
  run_job_url: http://worker:8080/run-job
worker:
  pipeline_timeout_seconds: 120
scrape:
  user_agent: insights-agent
  headless_enabled: false
  max_load_more_clicks: 3
analyze:
  model: gemini-1.5-pro
reaper:
  enabled: true
  interval_seconds: 30
  stale_after_seconds: 90
archive:
  provider: gcs
  gcs_bucket: scrape-archive
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Store.Provider != "redis" || cfg.Store.RedisAddr != "redis:6379" {
		t.Fatalf("expected store overrides to apply: %+v", cfg.Store)
	}
	if got := cfg.JobTTL(); got != 48*time.Hour {
		t.Fatalf("expected job TTL 48h, got %v", got)
	}
	if got := cfg.PipelineTimeout(); got != 120*time.Second {
		t.Fatalf("expected pipeline timeout 120s, got %v", got)
	}
	if cfg.Scrape.HeadlessEnabled || cfg.Scrape.MaxLoadMoreClicks != 3 {
		t.Fatalf("expected scrape overrides to apply: %+v", cfg.Scrape)
	}
	if cfg.Analyze.Model != "gemini-1.5-pro" {
		t.Fatalf("expected analyze model override, got %q", cfg.Analyze.Model)
	}
	if cfg.Archive.Provider != "gcs" || cfg.Archive.GCSBucket != "scrape-archive" {
		t.Fatalf("expected archive overrides to apply: %+v", cfg.Archive)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides to apply: %+v", cfg.Logging)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Store.Provider != "memory" {
		t.Fatalf("expected memory store default, got %q", cfg.Store.Provider)
	}
	if cfg.Reaper.StaleAfterSecs != 120 {
		t.Fatalf("expected reaper stale default, got %d", cfg.Reaper.StaleAfterSecs)
	}
	if cfg.Scrape.BaseURL == "" {
		t.Fatal("expected scrape base URL default")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown store", func(c *Config) { c.Store.Provider = "etcd" }},
		{"redis without addr", func(c *Config) { c.Store.Provider = "redis"; c.Store.RedisAddr = "" }},
		{"postgres without dsn", func(c *Config) { c.Store.Provider = "postgres" }},
		{"missing trigger url", func(c *Config) { c.Trigger.RunJobURL = "" }},
		{"zero pipeline timeout", func(c *Config) { c.Worker.PipelineTimeoutSeconds = 0 }},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }},
		{"gcs without bucket", func(c *Config) { c.Archive.Provider = "gcs" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

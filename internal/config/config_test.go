package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedcache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
feed:
  url: wss://feed.example.com/v1/session
  key_id: test-key
  secret: test-secret
storage:
  backend: file
  root: /tmp/feedcache-test
planner:
  force_refresh: true
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}

	if cfg.Feed.URL != "wss://feed.example.com/v1/session" {
		t.Errorf("Feed.URL = %q", cfg.Feed.URL)
	}
	if cfg.Feed.QueryTimeout != DefaultQueryTimeout {
		t.Errorf("Feed.QueryTimeout = %v, want default %v", cfg.Feed.QueryTimeout, DefaultQueryTimeout)
	}
	if cfg.Feed.RateLimit != DefaultRateLimit {
		t.Errorf("Feed.RateLimit = %v, want default %v", cfg.Feed.RateLimit, DefaultRateLimit)
	}
	if cfg.Storage.ReferenceMaxAge != 10*24*time.Hour {
		t.Errorf("Storage.ReferenceMaxAge = %v, want 240h", cfg.Storage.ReferenceMaxAge)
	}
	if !cfg.Planner.ForceRefresh {
		t.Error("Planner.ForceRefresh = false, want true")
	}
	if cfg.Planner.MaxParallel != DefaultMaxParallel {
		t.Errorf("Planner.MaxParallel = %d, want default %d", cfg.Planner.MaxParallel, DefaultMaxParallel)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FEEDCACHE_TEST_SECRET", "s3cret")

	path := writeConfig(t, `
feed:
  url: wss://feed.example.com/v1/session
  secret: ${FEEDCACHE_TEST_SECRET}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Feed.Secret != "s3cret" {
		t.Errorf("Feed.Secret = %q, want expanded env value", cfg.Feed.Secret)
	}
}

func TestDefaults_RootFromEnv(t *testing.T) {
	t.Setenv(EnvRoot, "/data/feedcache")

	cfg := &Config{}
	cfg.Feed.URL = "wss://feed.example.com"
	cfg.ApplyDefaults()

	if cfg.Storage.Root != "/data/feedcache" {
		t.Errorf("Storage.Root = %q, want env value", cfg.Storage.Root)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %q, want file when root present", cfg.Storage.Backend)
	}
}

func TestDefaults_NoRootDisablesCache(t *testing.T) {
	t.Setenv(EnvRoot, "")

	cfg := &Config{}
	cfg.Feed.URL = "wss://feed.example.com"
	cfg.ApplyDefaults()

	if cfg.Storage.Backend != "" {
		t.Errorf("Storage.Backend = %q, want disabled without a root", cfg.Storage.Backend)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Feed.URL = "wss://feed.example.com"
		cfg.ApplyDefaults()
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Errorf("minimal config Validate() error = %v", err)
	}

	cfg := base()
	cfg.Feed.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("missing feed.url: expected error")
	}

	cfg = base()
	cfg.Storage.Backend = "file"
	cfg.Storage.Root = ""
	if err := cfg.Validate(); err == nil {
		t.Error("file backend without root: expected error")
	}

	cfg = base()
	cfg.Storage.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("postgres backend without host: expected error")
	}

	cfg = base()
	cfg.Storage.Backend = "s3"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend: expected error")
	}

	cfg = base()
	cfg.Planner.MaxParallel = 0
	if err := cfg.Validate(); err == nil {
		t.Error("max_parallel 0: expected error")
	}
}

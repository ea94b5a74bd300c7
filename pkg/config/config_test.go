package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Addr != ":8090" {
		t.Errorf("expected default addr :8090, got %q", cfg.Server.Addr)
	}
	if cfg.Router.MaxConcurrency != 3 {
		t.Errorf("expected max_concurrency 3, got %d", cfg.Router.MaxConcurrency)
	}
	if cfg.Router.VectorTimeoutMs != 3000 || cfg.Router.FunctionTimeoutMs != 5000 {
		t.Errorf("unexpected timeout defaults: %d/%d",
			cfg.Router.VectorTimeoutMs, cfg.Router.FunctionTimeoutMs)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Backend != "memory" {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Cache.MaxItems != 100 || cfg.Cache.MaxBytes != 50<<20 {
		t.Errorf("unexpected cache bounds: %d items, %d bytes",
			cfg.Cache.MaxItems, cfg.Cache.MaxBytes)
	}
	if cfg.Breaker.FailureThreshold != 3 || cfg.Breaker.ResetTimeoutSecond != 60 {
		t.Errorf("unexpected breaker defaults: %+v", cfg.Breaker)
	}
	if len(cfg.Format.Priority) != 3 || cfg.Format.Priority[0] != "vector-search" {
		t.Errorf("unexpected priority default: %v", cfg.Format.Priority)
	}
	if cfg.Format.DefaultConfidence != 0.75 {
		t.Errorf("unexpected default confidence: %f", cfg.Format.DefaultConfidence)
	}
}

func TestLoadFromFile(t *testing.T) {
	raw := `
server:
  addr: ":9999"
router:
  max_concurrency: 8
cache:
  backend: sqlite
  path: /tmp/router.db
services:
  vector-search:
    kind: vector
    endpoint: localhost:6334
    collection: docs
  nlp-function-a:
    kind: function
    endpoint: https://fn-a.example.com/invoke
    api_key: secret
    fallback: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected file addr, got %q", cfg.Server.Addr)
	}
	if cfg.Router.MaxConcurrency != 8 {
		t.Errorf("expected file max_concurrency, got %d", cfg.Router.MaxConcurrency)
	}
	if cfg.Cache.Backend != "sqlite" || cfg.Cache.Path != "/tmp/router.db" {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	// Untouched keys keep their defaults.
	if cfg.Router.VectorTimeoutMs != 3000 {
		t.Errorf("expected default vector timeout retained, got %d", cfg.Router.VectorTimeoutMs)
	}

	vs, ok := cfg.Services["vector-search"]
	if !ok {
		t.Fatalf("expected vector-search service")
	}
	if vs.Kind != "vector" || vs.Collection != "docs" {
		t.Errorf("unexpected vector service: %+v", vs)
	}
	fn, ok := cfg.Services["nlp-function-a"]
	if !ok {
		t.Fatalf("expected nlp-function-a service")
	}
	if fn.Kind != "function" || fn.APIKey != "secret" || !fn.Fallback {
		t.Errorf("unexpected function service: %+v", fn)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AIROUTER_LOG_LEVEL", "debug")
	t.Setenv("AIROUTER_SERVER_ADDR", ":7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected env log level, got %q", cfg.Log.Level)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("expected env addr, got %q", cfg.Server.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("expected error for missing config file")
	}
}

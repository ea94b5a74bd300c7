// Package config loads router configuration from a YAML file and
// AIROUTER_-prefixed environment variables.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig                `koanf:"log"`
	Telemetry TelemetryConfig          `koanf:"telemetry"`
	Server    ServerConfig             `koanf:"server"`
	Router    RouterConfig             `koanf:"router"`
	Cache     CacheConfig              `koanf:"cache"`
	Breaker   BreakerConfig            `koanf:"breaker"`
	Format    FormatConfig             `koanf:"format"`
	Services  map[string]ServiceConfig `koanf:"services"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type RouterConfig struct {
	MaxConcurrency    int `koanf:"max_concurrency"`
	CacheTTLSeconds   int `koanf:"cache_ttl_seconds"`
	VectorTimeoutMs   int `koanf:"vector_timeout_ms"`
	FunctionTimeoutMs int `koanf:"function_timeout_ms"`
}

type CacheConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Backend      string `koanf:"backend"` // memory, sqlite
	Path         string `koanf:"path"`    // sqlite only
	MaxItems     int    `koanf:"max_items"`
	MaxBytes     int64  `koanf:"max_bytes"`
	SweepSeconds int    `koanf:"sweep_seconds"`
}

type BreakerConfig struct {
	FailureThreshold   int `koanf:"failure_threshold"`
	ResetTimeoutSecond int `koanf:"reset_timeout_seconds"`
}

type FormatConfig struct {
	Priority          []string `koanf:"priority"`
	DefaultConfidence float64  `koanf:"default_confidence"`
}

type ServiceConfig struct {
	Kind            string `koanf:"kind"` // vector, function
	Endpoint        string `koanf:"endpoint"`
	APIKey          string `koanf:"api_key"`    // function only
	Collection      string `koanf:"collection"` // vector only
	EmbedderBaseURL string `koanf:"embedder_base_url"`
	EmbedderModel   string `koanf:"embedder_model"`
	TimeoutMs       int    `koanf:"timeout_ms"`
	Fallback        bool   `koanf:"fallback"`
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")
	k.Set("server.addr", ":8090")

	k.Set("router.max_concurrency", 3)
	k.Set("router.cache_ttl_seconds", 300)
	k.Set("router.vector_timeout_ms", 3000)
	k.Set("router.function_timeout_ms", 5000)

	k.Set("cache.enabled", true)
	k.Set("cache.backend", "memory")
	k.Set("cache.max_items", 100)
	k.Set("cache.max_bytes", 50<<20)
	k.Set("cache.sweep_seconds", 300)

	k.Set("breaker.failure_threshold", 3)
	k.Set("breaker.reset_timeout_seconds", 60)

	k.Set("format.priority", []string{"vector-search", "nlp-function-a", "analytics-function-b"})
	k.Set("format.default_confidence", 0.75)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (AIROUTER_ROUTER_MAX_CONCURRENCY -> router.max_concurrency)
	if err := k.Load(env.Provider("AIROUTER_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "AIROUTER_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

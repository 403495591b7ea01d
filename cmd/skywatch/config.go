package main

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/star/skywatch/internal/api"
	"github.com/star/skywatch/internal/auth"
	"github.com/star/skywatch/internal/cache"
	"github.com/star/skywatch/internal/dailypath"
	"github.com/star/skywatch/internal/ephemeris"
	"github.com/star/skywatch/internal/observability"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/stream"
)

// envInt reads key as an integer in [min, max], keeping def on a missing or
// invalid value.
func envInt(logger *slog.Logger, key string, def, min, max int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

// envFloat reads key as a float in [min, max], keeping def on a missing or
// invalid value.
func envFloat(logger *slog.Logger, key string, def, min, max float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < min || f > max {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return f
}

func envBool(logger *slog.Logger, key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SKYWATCH_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SKYWATCH_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SKYWATCH_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SKYWATCH_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadObserver builds the default observer. Unlike the tuning knobs, a bad
// location is fatal: every cached answer would be wrong.
func loadObserver(logger *slog.Logger) (observer.Observer, error) {
	cfg := observer.Config{
		Latitude:  observer.DefaultLatitude,
		Longitude: observer.DefaultLongitude,
		Timezone:  observer.DefaultTimezone,
	}

	for _, p := range []struct {
		key string
		dst *float64
	}{
		{"SKYWATCH_LATITUDE", &cfg.Latitude},
		{"SKYWATCH_LONGITUDE", &cfg.Longitude},
		{"SKYWATCH_ELEVATION", &cfg.Elevation},
	} {
		if v := os.Getenv(p.key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return observer.Observer{}, errors.New(p.key + " must be a number")
			}
			*p.dst = f
		}
	}
	if v := os.Getenv("SKYWATCH_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}

	obs, err := observer.New(cfg)
	if err != nil {
		return observer.Observer{}, err
	}
	logger.Info("observer config", "observer", obs.String())
	return obs, nil
}

func loadSamplerConfig(logger *slog.Logger) dailypath.Config {
	cfg := dailypath.DefaultConfig()
	cfg.GranularityMinutes = envInt(logger, "SKYWATCH_SAMPLE_GRANULARITY_MINUTES", cfg.GranularityMinutes, 1, 60)
	if 60%cfg.GranularityMinutes != 0 {
		logger.Warn("SKYWATCH_SAMPLE_GRANULARITY_MINUTES must divide 60, using default", "value", cfg.GranularityMinutes, "default", 30)
		cfg.GranularityMinutes = 30
	}
	cfg.MarginHours = envInt(logger, "SKYWATCH_SAMPLE_MARGIN_HOURS", cfg.MarginHours, 0, 12)
	if envBool(logger, "SKYWATCH_SAMPLE_FULL_DAY", false) {
		cfg.Policy = dailypath.PolicyFullDay
	}

	logger.Info("sampler config",
		"granularity_minutes", cfg.GranularityMinutes,
		"margin_hours", cfg.MarginHours,
		"policy", cfg.Policy.String(),
	)
	return cfg
}

func loadEphemerisConfig(logger *slog.Logger) ephemeris.Config {
	cfg := ephemeris.DefaultConfig()
	cfg.CoarseStep = time.Duration(envInt(logger, "SKYWATCH_RISESET_STEP_SECONDS", int(cfg.CoarseStep.Seconds()), 10, 3600)) * time.Second
	cfg.SearchSpan = time.Duration(envInt(logger, "SKYWATCH_RISESET_SPAN_HOURS", int(cfg.SearchSpan.Hours()), 24, 72)) * time.Hour

	logger.Info("ephemeris config",
		"coarse_step_seconds", cfg.CoarseStep.Seconds(),
		"search_span_hours", cfg.SearchSpan.Hours(),
	)
	return cfg
}

func loadBreakerConfig(logger *slog.Logger) ephemeris.BreakerConfig {
	cfg := ephemeris.BreakerConfig{
		MaxFailures: uint32(envInt(logger, "SKYWATCH_BREAKER_MAX_FAILURES", 20, 1, 10000)),
		OpenTimeout: time.Duration(envInt(logger, "SKYWATCH_BREAKER_OPEN_SECONDS", 30, 1, 3600)) * time.Second,
	}
	logger.Info("breaker config",
		"max_failures", cfg.MaxFailures,
		"open_seconds", cfg.OpenTimeout.Seconds(),
	)
	return cfg
}

func loadWorkers(logger *slog.Logger) int {
	n := envInt(logger, "SKYWATCH_WORKERS", runtime.NumCPU(), 1, 1024)
	logger.Info("worker config", "workers", n)
	return n
}

func loadCacheConfig(logger *slog.Logger) cache.Config {
	cfg := cache.Config{
		Schedule: "1 0 * * *",
		KeepDays: envInt(logger, "SKYWATCH_CACHE_KEEP_DAYS", 2, 0, 30),
	}
	if v := strings.TrimSpace(os.Getenv("SKYWATCH_CACHE_SCHEDULE")); v != "" {
		cfg.Schedule = v
	}

	logger.Info("cache config",
		"schedule", cfg.Schedule,
		"keep_days", cfg.KeepDays,
	)
	return cfg
}

type catalogConfig struct {
	URL          string
	MaxMagnitude float64
}

func loadCatalogConfig(logger *slog.Logger) catalogConfig {
	cfg := catalogConfig{
		URL:          strings.TrimSpace(os.Getenv("SKYWATCH_CATALOG_URL")),
		MaxMagnitude: envFloat(logger, "SKYWATCH_CATALOG_MAX_MAGNITUDE", 4.5, -2, 8),
	}
	logger.Info("catalog config",
		"source_url", cfg.URL,
		"max_magnitude", cfg.MaxMagnitude,
	)
	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: envInt(logger, "SKYWATCH_STREAM_MAX_CONCURRENT", 10, 1, 1000),
		MaxTotal:           envInt(logger, "SKYWATCH_STREAM_MAX_TOTAL", 1000, 1, 100000),
		Interval:           time.Duration(envInt(logger, "SKYWATCH_STREAM_INTERVAL_SECONDS", 5, 1, 60)) * time.Second,
		KeepaliveInterval:  time.Duration(envInt(logger, "SKYWATCH_STREAM_KEEPALIVE_INTERVAL", 30, 1, 600)) * time.Second,
		TrustProxy:         envBool(logger, "SKYWATCH_TRUST_PROXY", false),
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"interval_seconds", cfg.Interval.Seconds(),
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)
	return cfg
}

func loadServerConfig(logger *slog.Logger) api.Config {
	cfg := api.Config{
		Addr:       os.Getenv("SKYWATCH_HTTP_ADDR"),
		TrustProxy: envBool(logger, "SKYWATCH_TRUST_PROXY", false),
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return cfg
}

func loadTracingConfig(logger *slog.Logger) observability.TracingConfig {
	cfg := observability.TracingConfig{
		Enabled:     envBool(logger, "SKYWATCH_TRACING_ENABLED", false),
		ServiceName: "skywatch",
		Exporter:    strings.ToLower(os.Getenv("SKYWATCH_TRACING_EXPORTER")),
		Endpoint:    os.Getenv("SKYWATCH_OTLP_ENDPOINT"),
		SampleRatio: envFloat(logger, "SKYWATCH_TRACING_SAMPLE_RATIO", 1.0, 0, 1),
	}
	if cfg.Exporter == "" {
		cfg.Exporter = "stdout"
	}
	return cfg
}

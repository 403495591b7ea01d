package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/star/skywatch/internal/api"
	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/cache"
	"github.com/star/skywatch/internal/catalog"
	"github.com/star/skywatch/internal/celestial"
	"github.com/star/skywatch/internal/dailypath"
	"github.com/star/skywatch/internal/ephemeris"
	"github.com/star/skywatch/internal/metrics"
	"github.com/star/skywatch/internal/observability"
	"github.com/star/skywatch/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// A missing .env is normal; the environment wins over file values.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not load .env file", "error", err)
	}

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, loadTracingConfig(logger), logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		return err
	}
	obs, err := loadObserver(logger)
	if err != nil {
		return err
	}

	calc := ephemeris.NewCalculator(loadEphemerisConfig(logger))
	provider := ephemeris.NewBreaker(calc, loadBreakerConfig(logger), logger)

	sampler, err := dailypath.NewSampler(provider, loadSamplerConfig(logger), logger)
	if err != nil {
		return err
	}
	workers := loadWorkers(logger)
	assembler := celestial.NewAssembler(provider, sampler, workers, logger)

	catCfg := loadCatalogConfig(logger)
	store := catalog.NewStore()
	store.Set(loadCatalog(ctx, catCfg, logger))
	metrics.SetCatalogStars(len(store.Get().Stars))
	registry := body.DefaultRegistry(store.Get().Stars)

	dailyCache := cache.New(loadCacheConfig(logger), assembler, obs, body.SolarSystem(), logger)
	go func() {
		if err := dailyCache.Start(ctx); err != nil {
			logger.Error("cache generator failed", "error", err)
			stop()
		}
	}()

	streamHandler := stream.NewHandler(assembler, registry, obs, loadStreamConfig(logger), logger)

	srvCfg := loadServerConfig(logger)
	srvCfg.Auth = authCfg
	srvCfg.MaxMagnitude = catCfg.MaxMagnitude
	srv := api.NewServer(srvCfg, api.Deps{
		Observer:  obs,
		Assembler: assembler,
		Registry:  registry,
		Cache:     dailyCache,
		Catalog:   store,
		Stars:     celestial.NewStarPool(provider, workers, logger),
		Stream:    streamHandler,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", srvCfg.Addr,
			"auth_enabled", authCfg.Enabled,
			"observer", obs.String(),
			"bodies", registry.Len(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// loadCatalog fetches the remote catalog when configured, falling back to the
// embedded one.
func loadCatalog(ctx context.Context, cfg catalogConfig, logger *slog.Logger) *catalog.Dataset {
	if cfg.URL != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
		defer cancel()
		ds, err := catalog.NewFetcher(cfg.URL, logger).Load(fetchCtx)
		if err == nil {
			return ds
		}
		logger.Warn("star catalog fetch failed, using embedded catalog", "source_url", cfg.URL, "error", err)
	}

	ds, err := catalog.Embedded(logger)
	if err != nil {
		// The embedded file is part of the build; failing here is a packaging bug.
		logger.Error("embedded star catalog unusable", "error", err)
		return &catalog.Dataset{Source: "none", LoadedAt: time.Now()}
	}
	logger.Info("star catalog loaded", "source", ds.Source, "stars", len(ds.Stars))
	return ds
}

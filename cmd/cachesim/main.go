// Command cachesim runs a cache engine under a synthetic workload and
// exposes its statistics over HTTP.
//
// Configuration comes from the environment:
//
//	ADDRESS            listen address (default :8080)
//	CACHE_CONFIG       optional YAML file with cache.Config fields
//	LOG_LEVEL          debug, info, warn or error (default info)
//	SENTRY_DSN         optional Sentry DSN
//	SNAPSHOT_BACKEND   none, memory, file, redis, s3 or postgres (default none)
//	SNAPSHOT_DIR       directory for the file backend (default ./snapshots)
//	SNAPSHOT_COMPRESS  zstd-compress snapshot blobs (default true)
//	REDIS_URL          connection URL for the redis backend
//	DATABASE_URL       connection URL for the postgres backend
//	SNAPSHOT_S3_*      settings for the s3 backend, see snapshot.S3Config
//	WORKLOAD_KEYS      size of the simulated key space (default 5000)
//	WORKLOAD_RATE      operations per second (default 500)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/cachemetrics"
	"github.com/dmitrymomot/cachekit/pkg/logger"
	"github.com/dmitrymomot/cachekit/pkg/transform"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log := logger.NewWithSentry(logger.SentryConfig{
		DSN:         os.Getenv("SENTRY_DSN"),
		Environment: getEnv("SENTRY_ENVIRONMENT", "development"),
		MinLevel:    slog.LevelWarn,
	}, logger.WithLevel(parseLevel(getEnv("LOG_LEVEL", "info"))))

	if err := run(log); err != nil {
		log.Error("cachesim failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openSnapshotStore(ctx, getEnv("SNAPSHOT_BACKEND", "none"), log)
	if err != nil {
		return err
	}
	defer closeStore()
	if store != nil {
		cfg.PersistToDisk = true
	}

	opts := []cache.Option{cache.WithLogger(log), cache.WithSnapshotStore(store)}

	var gateway *transform.Gateway
	if cfg.CompressionEnabled {
		helper, err := transform.NewZstdHelper()
		if err != nil {
			return err
		}
		gateway = transform.NewGateway(helper,
			transform.WithTimeout(cfg.TransformTimeout),
			transform.WithLogger(log),
		)
		opts = append(opts, cache.WithTransformer(gateway))
	}

	engine, err := cache.New[Item](cfg, opts...)
	if err != nil {
		return err
	}
	engine.OnRemove(func(key string, reason cache.RemovalReason) {
		if reason == cache.RemovedEvicted {
			log.Debug("entry evicted", slog.String("key", key))
		}
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricOpts := []cachemetrics.Option{}
	if gateway != nil {
		metricOpts = append(metricOpts, cachemetrics.WithTransform(gateway))
	}
	reg.MustRegister(cachemetrics.New(engine, metricOpts...))

	srv := &http.Server{
		Addr:              getEnv("ADDRESS", ":8080"),
		Handler:           newRouter(engine, reg, store, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wl := workload{
		keys: getEnvInt("WORKLOAD_KEYS", 5000),
		rate: getEnvInt("WORKLOAD_RATE", 500),
		log:  log,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return wl.run(gctx, engine)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if err := engine.Close(); err != nil {
		log.Warn("closing cache", slog.String("error", err.Error()))
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// loadConfig reads CACHE_CONFIG when set and falls back to defaults.
func loadConfig() (cache.Config, error) {
	path := os.Getenv("CACHE_CONFIG")
	if path == "" {
		return cache.DefaultConfig(), nil
	}
	return cache.LoadConfig(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// getEnv returns environment variable value or default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return b
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexcart/internal/config"
	"nexcart/internal/httpserver"
	"nexcart/internal/logging"
	"nexcart/internal/metrics"
	"nexcart/internal/offline"
	"nexcart/internal/storage/sqlite"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const installRetry = 30 * time.Second

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("edge")
	}
}

// run returns instead of exiting so deferred closes always execute.
func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	base, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(base, "edge")

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil || upstream.Host == "" {
		return fmt.Errorf("UPSTREAM_URL must be an absolute url, got %q", cfg.UpstreamURL)
	}

	storage, closeStorage, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.WithError(err).Warn("close cache store")
		}
	}()

	collector := metrics.New()
	worker, err := offline.NewWorker(offline.Config{
		Version:     cfg.CacheVersion,
		Upstream:    upstream,
		APIPrefix:   cfg.APIPrefix,
		APITimeout:  cfg.APITimeout,
		Precache:    cfg.PrecachePaths,
		OfflinePath: cfg.OfflinePath,
		SkipWaiting: cfg.SkipWaiting,
	}, storage,
		offline.WithLogger(logging.Component(base, "offline")),
		offline.WithRecorder(collector),
	)
	if err != nil {
		return fmt.Errorf("init offline worker: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go install(ctx, worker, logger)

	srv := httpserver.NewEdge(cfg.EdgeAddr, logging.Component(base, "http"), worker, promhttp.Handler())

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-stopCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case runErr = <-serverErr:
		logger.WithError(runErr).Error("server error")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
	if err := worker.Close(shutdownCtx); err != nil {
		logger.WithError(err).Warn("offline worker close incomplete")
	}
	logger.Info("edge stopped")
	return runErr
}

// openStorage picks the cache backend. The close func is always safe to call.
func openStorage(cfg config.Config) (offline.CacheStorage, func() error, error) {
	if cfg.CacheBackend != config.CacheSQLite {
		return offline.NewMemoryStorage(), func() error { return nil }, nil
	}
	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, func() error { return nil }, fmt.Errorf("open cache store: %w", err)
	}
	return store.CacheStorage(), store.Close, nil
}

// install precaches the app shell, retrying while the upstream is unreachable.
// Requests pass straight through until it succeeds.
func install(ctx context.Context, worker *offline.Worker, logger *logrus.Entry) {
	for {
		err := worker.Install(ctx)
		if err == nil {
			return
		}
		if errors.Is(err, offline.ErrWrongState) || errors.Is(err, offline.ErrClosed) || ctx.Err() != nil {
			return
		}
		if worker.State() == offline.StateActive {
			// installed; leftover caches are purged on the next refresh
			logger.WithError(err).Warn("offline worker active with old caches left")
			return
		}
		logger.WithField("retry_in", installRetry.String()).Info("retrying offline install")
		select {
		case <-ctx.Done():
			return
		case <-time.After(installRetry):
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/stockpulse/stockpulse-api/internal/analysis"
	"github.com/stockpulse/stockpulse-api/internal/config"
	"github.com/stockpulse/stockpulse-api/internal/platform/logger"
	"github.com/stockpulse/stockpulse-api/internal/queue"
)

// application holds the assembled dependency graph: configuration, logging,
// the selected queue backend, the worker pool and the HTTP layer on top.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	backend  queue.Backend
	queue    *queue.Queue
	pool     *queue.WorkerPool
}

// newApplication loads configuration and wires every component together. The
// backend choice happens exactly once here: whatever SelectBackend returns is
// the mode the process runs in until it exits.
func newApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Queue.WorkerCount,
		"redis_configured", cfg.Redis.URL != "",
		"auth_enabled", cfg.Auth.JWTSecret != "")

	provider, err := analysis.NewHTTPProvider(analysis.ProviderConfig{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	}, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create market data provider: %w", err)
	}
	analyzer := analysis.NewHeuristicAnalyzer(provider, appLogger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := queue.NewMetrics(promRegistry)

	backend := queue.SelectBackend(context.Background(), cfg.Redis.URL, appLogger)
	workerRegistry := queue.NewWorkerRegistry()

	q := queue.New(backend, workerRegistry, queue.Config{
		CleanupAge:      cfg.Queue.CleanupAge,
		CleanupInterval: cfg.Queue.CleanupInterval,
	}, metrics, appLogger)

	pool := queue.NewWorkerPool(backend, analyzer, workerRegistry, queue.WorkerPoolConfig{
		WorkerCount: cfg.Queue.WorkerCount,
		PopTimeout:  cfg.Queue.PopTimeout,
		TaskTimeout: cfg.Queue.TaskTimeout,
	}, metrics, appLogger)

	return &application{
		config:   cfg,
		logger:   appLogger,
		registry: promRegistry,
		backend:  backend,
		queue:    q,
		pool:     pool,
	}, nil
}

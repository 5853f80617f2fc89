package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/insitu-feed-adapter/internal/api/http"
	"github.com/i474232898/insitu-feed-adapter/internal/config"
	"github.com/i474232898/insitu-feed-adapter/internal/dataset"
	"github.com/i474232898/insitu-feed-adapter/internal/feed"
	"github.com/i474232898/insitu-feed-adapter/internal/feed/transport"
	"github.com/i474232898/insitu-feed-adapter/internal/metrics"
	"github.com/i474232898/insitu-feed-adapter/internal/scheduler"
	"github.com/i474232898/insitu-feed-adapter/internal/store"
)

func main() {
	// Load configuration (.env first, then the environment).
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	defs, err := dataset.Load(cfg.DatasetsFile)
	if err != nil {
		log.Error("failed to load datasets", "file", cfg.DatasetsFile, "error", err)
		os.Exit(1)
	}

	// Metrics registry served on /metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	feedMetrics, err := metrics.New(reg)
	if err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Shared HTTP client for outbound microWFS calls. The timeout covers
	// reading the whole response body.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Stream openers with resilience (backoff + circuit breaker + rate limit),
	// one per source endpoint.
	openers := transport.NewPool(httpClient, transport.Options{
		RequestsPerSecond: cfg.FeedRateLimit,
		UserAgent:         cfg.UserAgent,
	})

	adapters := make([]*feed.Adapter, 0, len(defs))
	jobs := make([]scheduler.Dataset, 0, len(defs))
	for _, def := range defs {
		adapters = append(adapters, feed.NewAdapter(def, openers.For(def.SourceURL), feed.Options{
			ChunkSize: cfg.ChunkSize,
			Logger:    log.With("component", "adapter"),
			Recorder:  feedMetrics,
		}))
		jobs = append(jobs, scheduler.Dataset{ID: def.ID, Interval: def.ReloadInterval()})
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Core service routing queries to adapters and refreshing the store.
	service := feed.NewService(memStore, adapters, feed.ServiceOptions{
		RefreshWindow: cfg.RefreshWindow,
		Logger:        log.With("component", "service"),
	})

	// Scheduler that periodically refreshes the latest observations.
	sched := scheduler.New(jobs, service, scheduler.Options{
		DefaultInterval: cfg.RefreshInterval,
		Timeout:         cfg.HTTPTimeout,
		Logger:          log.With("component", "scheduler"),
	})
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "insitu-feed-adapter",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "insitu-feed-adapter",
			"datasets": len(defs),
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// API routes.
	httpapi.RegisterRoutes(app, service, cfg.MaxRows)

	go func() {
		log.Info("listening", "port", cfg.Port, "datasets", len(defs))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}

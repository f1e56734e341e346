// Package main is the entry point for the EquityLens API server.
//
// It loads configuration, connects the database pool and the Redis cache,
// wires the domain services and provider clients, builds the HTTP server with
// the core chassis (middleware, routing, health checks), and starts listening
// for requests.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"equitylens/internal/api/handlers"
	"equitylens/internal/companies"
	"equitylens/internal/config"
	"equitylens/internal/core"
	"equitylens/internal/db"
	"equitylens/internal/external"
	"equitylens/internal/reports"
	"equitylens/internal/subscription"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("equitylens API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	// Database pool.
	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	pool, err := db.NewPool(startCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	// Redis cache for company search.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password.Reveal(),
		DB:       cfg.Redis.DB,
	})

	// Repositories.
	subRepo := db.NewSubscriptionRepo(pool, logger)
	reportRepo := db.NewReportRepo(pool, logger)
	companyRepo := db.NewCompanyRepo(pool, logger)

	// Provider clients.
	anthropicClient := external.NewAnthropicClient(
		&http.Client{Timeout: cfg.Model.Timeout},
		cfg.Model,
		logger,
	)
	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: 20 * time.Second},
		external.StripeClientConfig{
			Billing:      cfg.Billing,
			DashboardURL: cfg.Server.DashboardURL,
			Logger:       logger,
		},
	)

	// Domain services.
	subService := subscription.NewService(subRepo, logger)
	reportService := reports.NewService(anthropicClient, reportRepo, subService, logger)
	searchCache := companies.NewSearchCache(redisClient, cfg.Redis.SearchTTL, logger)
	companyService := companies.NewService(companyRepo, searchCache, logger)

	// Build the server chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = core.NewPrometheusMetrics(cfg.Service)
	srv.HealthProbes = []core.HealthProbe{
		db.PoolProbe{Pool: pool},
		companies.Probe{Client: redisClient},
	}
	srv.AddCloser("postgres", func() error { pool.Close(); return nil })
	srv.AddCloser("redis", redisClient.Close)

	// Handlers.
	usageHandler := handlers.NewUsageHandler(subService, srv.Validator, logger)
	reportsHandler := handlers.NewReportsHandler(reportService, srv.Validator, logger)
	billingHandler := handlers.NewBillingHandler(stripeClient, srv.Validator, logger)
	companiesHandler := handlers.NewCompaniesHandler(companyService, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		subService,
		cfg.Billing.StripeWebhookSecret.Reveal(),
		logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		usageHandler.RegisterRoutes,
		reportsHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
		companiesHandler.RegisterRoutes,
	)
	srv.RootRouteRegistrars = append(srv.RootRouteRegistrars,
		webhookHandler.RegisterRoutes,
	)

	// Mount all routes (middleware chain + versioned endpoints + health).
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Report generation streams back after a long model call, so the write
		// window exceeds the request-context ceiling by a small margin.
		WriteTimeout: 160 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}

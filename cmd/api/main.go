package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tinkerly/tinkerly-backend/api/routes"
	"github.com/tinkerly/tinkerly-backend/internal/analysis"
	"github.com/tinkerly/tinkerly-backend/internal/checkout"
	"github.com/tinkerly/tinkerly-backend/internal/cron"
	"github.com/tinkerly/tinkerly-backend/internal/entitlements"
	"github.com/tinkerly/tinkerly-backend/internal/pricing"
	"github.com/tinkerly/tinkerly-backend/internal/projects"
	stripewebhook "github.com/tinkerly/tinkerly-backend/internal/webhooks/stripe"
	"github.com/tinkerly/tinkerly-backend/pkg/config"
	"github.com/tinkerly/tinkerly-backend/pkg/db"
	"github.com/tinkerly/tinkerly-backend/pkg/instance"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
	"github.com/tinkerly/tinkerly-backend/pkg/metrics"
	"github.com/tinkerly/tinkerly-backend/pkg/migrate"
	"github.com/tinkerly/tinkerly-backend/pkg/openai"
	"github.com/tinkerly/tinkerly-backend/pkg/redis"
	"github.com/tinkerly/tinkerly-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		if !errors.Is(err, stripe.ErrNotConfigured) {
			logg.Error(context.Background(), "failed to bootstrap stripe", err)
			os.Exit(1)
		}
		logg.Warn(context.Background(), "stripe not configured, checkout routes will answer CONFIG_ERROR")
	}

	openaiClient, err := openai.NewClient(context.Background(), cfg.OpenAI, logg)
	if err != nil {
		if !errors.Is(err, openai.ErrNotConfigured) {
			logg.Error(context.Background(), "failed to bootstrap openai", err)
			os.Exit(1)
		}
		logg.Warn(context.Background(), "openai not configured, analysis route will answer CONFIG_ERROR")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	billingMetrics := metrics.NewBillingMetrics(registry)
	analysisMetrics := metrics.NewAnalysisMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	catalog := pricing.Default(cfg.Stripe.Currency)

	var gateway checkout.Gateway
	var subscriptions entitlements.SubscriptionFetcher
	if sg := checkout.NewStripeGateway(checkout.NewStripeClient(stripeClient), cfg.Stripe.Timeout); sg != nil {
		gateway = sg
		subscriptions = sg
	}

	projectRepo := projects.NewRepository(dbClient.DB())

	entitlementService, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:          entitlements.NewRepository(dbClient.DB()),
		Catalog:       catalog,
		Tx:            dbClient,
		Subscriptions: subscriptions,
		Metrics:       billingMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement service", err)
		os.Exit(1)
	}

	builder, err := checkout.NewBuilder(catalog, cfg.App.BaseURL())
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout builder", err)
		os.Exit(1)
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Builder:  builder,
		Gateway:  gateway,
		Projects: projectRepo,
		Metrics:  billingMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	projectService, err := projects.NewService(projects.ServiceParams{
		Repo:         projectRepo,
		Entitlements: entitlementService,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create project service", err)
		os.Exit(1)
	}

	var provider analysis.Provider
	if p := analysis.NewOpenAIProvider(openaiClient); p != nil {
		provider = p
	}
	analysisService := analysis.NewService(analysis.ServiceParams{
		Provider: provider,
		Timeout:  cfg.OpenAI.Timeout,
		Metrics:  analysisMetrics,
		Logger:   logg,
	})

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Entitlements: entitlementService,
		Projects:     projectRepo,
		Metrics:      billingMetrics,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	resetJob, err := cron.NewResetAnalysesJob(entitlementService)
	if err != nil {
		logg.Error(context.Background(), "failed to create reset job", err)
		os.Exit(1)
	}
	cronLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.ResetAnalysesJobName), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	cronService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(resetJob),
		Lock:     cronLock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.GetID(),
		"stripe_env":  cfg.Stripe.Environment(),
		"stripe_live": stripeClient != nil,
		"llm_enabled": provider != nil,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Catalog:        catalog,
			Checkout:       checkoutService,
			Entitlements:   entitlementService,
			Analysis:       analysisService,
			Projects:       projectService,
			Cron:           cronService,
			StripeClient:   stripeClient,
			StripeWebhooks: webhookService,
			WebhookGuard:   webhookGuard,
			Gatherer:       registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
	logg.Info(ctx, "api server stopped")
}

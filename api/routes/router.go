package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinkerly/tinkerly-backend/api/controllers"
	webhookcontrollers "github.com/tinkerly/tinkerly-backend/api/controllers/webhooks"
	"github.com/tinkerly/tinkerly-backend/api/middleware"
	"github.com/tinkerly/tinkerly-backend/internal/analysis"
	checkoutsvc "github.com/tinkerly/tinkerly-backend/internal/checkout"
	"github.com/tinkerly/tinkerly-backend/internal/cron"
	"github.com/tinkerly/tinkerly-backend/internal/entitlements"
	"github.com/tinkerly/tinkerly-backend/internal/pricing"
	"github.com/tinkerly/tinkerly-backend/internal/projects"
	stripewebhook "github.com/tinkerly/tinkerly-backend/internal/webhooks/stripe"
	"github.com/tinkerly/tinkerly-backend/pkg/config"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
	"github.com/tinkerly/tinkerly-backend/pkg/redis"
	"github.com/tinkerly/tinkerly-backend/pkg/stripe"
)

// Params groups everything the router wires. Nil services answer with an
// error envelope rather than panicking.
type Params struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis *redis.Client

	Catalog      *pricing.Catalog
	Checkout     checkoutsvc.Service
	Entitlements entitlements.Service
	Analysis     analysis.Service
	Projects     projects.Service
	Cron         *cron.Service

	StripeClient   *stripe.Client
	StripeWebhooks *stripewebhook.Service
	WebhookGuard   *stripewebhook.IdempotencyGuard

	Gatherer prometheus.Gatherer
}

type jobRunner interface {
	Trigger(ctx context.Context, name string) (int64, error)
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type eventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		limiter          rateLimiter
		deps             = map[string]controllers.Pinger{}
	)
	if p.Redis != nil {
		idempotencyStore = p.Redis
		limiter = p.Redis
		deps["redis"] = p.Redis
	}
	if p.DB != nil {
		deps["db"] = p.DB
	}

	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.CheckoutLimit)
	analysisPolicy := middleware.NewRateLimitPolicy("analysis", cfg.RateLimit.Window, cfg.RateLimit.AnalysisLimit)

	var jobs jobRunner
	if p.Cron != nil {
		jobs = p.Cron
	}
	var webhooks webhookcontrollers.StripeWebhookService
	if p.StripeWebhooks != nil {
		webhooks = p.StripeWebhooks
	}
	var guard eventGuard
	if p.WebhookGuard != nil {
		guard = p.WebhookGuard
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/pricing", controllers.Pricing(p.Catalog))
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(webhooks, p.StripeClient, guard, logg))
		r.With(middleware.CronAuth(cfg.Cron.Secret, logg)).
			Get("/cron/reset-analyses", controllers.CronJob(jobs, cron.ResetAnalysesJobName, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Use(middleware.RateLimit(checkoutPolicy, limiter, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))
			r.Post("/create-subscription", controllers.CreateSubscription(p.Checkout, logg))
			r.Post("/create-project-payment", controllers.CreateProjectPayment(p.Checkout, logg))
			r.Post("/purchase-credits", controllers.PurchaseCredits(p.Checkout, logg))
		})

		r.With(
			middleware.OptionalAuth(cfg.JWT, logg),
			middleware.RateLimit(analysisPolicy, limiter, logg),
		).Post("/analyze-project", controllers.AnalyzeProject(p.Analysis, p.Entitlements, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))
			r.Post("/create-credit-session", controllers.CreateCreditSession(p.Checkout, logg))
			r.Post("/subscription/update", controllers.SubscriptionUpdate(p.Entitlements, logg))
			r.Get("/user/projects", controllers.UserProjects(p.Projects, logg))
		})
	})

	return r
}

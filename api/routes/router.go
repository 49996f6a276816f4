package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/h2hthailand/h2h-backend/api/controllers"
	webhookcontrollers "github.com/h2hthailand/h2h-backend/api/controllers/webhooks"
	"github.com/h2hthailand/h2h-backend/api/middleware"
	"github.com/h2hthailand/h2h-backend/internal/auth"
	"github.com/h2hthailand/h2h-backend/internal/items"
	"github.com/h2hthailand/h2h-backend/internal/notifications"
	"github.com/h2hthailand/h2h-backend/internal/orders"
	"github.com/h2hthailand/h2h-backend/internal/tokens"
	paypalwebhook "github.com/h2hthailand/h2h-backend/internal/webhooks/paypal"
	"github.com/h2hthailand/h2h-backend/pkg/config"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
	"github.com/h2hthailand/h2h-backend/pkg/redis"
)

// Deps bundles everything the router needs. Optional fields may be nil; the
// affected endpoints then degrade (no rate limiting, 500 from the handler).
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry

	Auth          auth.Service
	Items         items.Service
	Orders        orders.Service
	Notifications notifications.Service
	Tokens        tokens.Service
	PayPalWebhook paypalwebhook.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	rateLimit := func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		if deps.Redis == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.AuthRateLimit(policy, deps.Redis, logg)
	}
	loginLimit := rateLimit(middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	))
	registerLimit := rateLimit(middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paypal", webhookcontrollers.PayPalWebhook(deps.PayPalWebhook, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(registerLimit).Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.With(loginLimit).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(loginLimit).Post("/forgot-password", controllers.AuthForgotPassword(deps.Auth, logg))
		r.Post("/reset-password", controllers.AuthResetPassword(deps.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Get("/me", controllers.AuthMe(deps.Auth, logg))
	})

	r.Route("/api/v1/items", func(r chi.Router) {
		r.Get("/", controllers.ItemList(deps.Items, logg))
		r.Get("/{itemId}", controllers.ItemGet(deps.Items, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Post("/", controllers.ItemCreate(deps.Items, logg))
			r.Patch("/{itemId}", controllers.ItemUpdate(deps.Items, logg))
			r.Delete("/{itemId}", controllers.ItemDelete(deps.Items, logg))
		})
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/", controllers.OrderCreate(deps.Orders, logg))
		r.Get("/", controllers.OrderList(deps.Orders, logg))
		r.Get("/{orderId}", controllers.OrderGet(deps.Orders, logg))
		r.Patch("/{orderId}/status", controllers.OrderUpdateStatus(deps.Orders, logg))
		r.Patch("/{orderId}/slip", controllers.OrderAttachSlip(deps.Orders, logg))
		r.Post("/{orderId}/pay/paypal", controllers.OrderCreatePayment(deps.Orders, logg))
	})

	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
		r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
	})

	r.Route("/api/v1/tokens", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/balance", controllers.TokenBalance(deps.Tokens, logg))
		r.Get("/ledger", controllers.TokenLedger(deps.Tokens, logg))
		r.With(middleware.RequireRole("admin", logg)).Post("/adjust", controllers.TokenAdjust(deps.Tokens, logg))
	})

	return r
}

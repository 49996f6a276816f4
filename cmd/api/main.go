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
	"go.uber.org/multierr"

	"github.com/h2hthailand/h2h-backend/api/routes"
	"github.com/h2hthailand/h2h-backend/internal/auth"
	"github.com/h2hthailand/h2h-backend/internal/items"
	"github.com/h2hthailand/h2h-backend/internal/notifications"
	"github.com/h2hthailand/h2h-backend/internal/orders"
	"github.com/h2hthailand/h2h-backend/internal/tokens"
	paypalwebhook "github.com/h2hthailand/h2h-backend/internal/webhooks/paypal"
	"github.com/h2hthailand/h2h-backend/pkg/config"
	"github.com/h2hthailand/h2h-backend/pkg/db"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
	"github.com/h2hthailand/h2h-backend/pkg/mailer"
	"github.com/h2hthailand/h2h-backend/pkg/metrics"
	"github.com/h2hthailand/h2h-backend/pkg/migrate"
	"github.com/h2hthailand/h2h-backend/pkg/paypal"
	"github.com/h2hthailand/h2h-backend/pkg/redis"
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

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	paypalClient, err := paypal.NewClient(ctx, cfg.PayPal, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap paypal client", err)
		os.Exit(1)
	}

	var mailSender mailer.Sender
	if m, err := mailer.New(cfg.SMTP, logg); err != nil {
		logg.Warn(ctx, "mailer disabled: "+err.Error())
	} else {
		mailSender = m
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:   auth.NewUserRepository(dbClient.DB()),
		ResetRepo:  auth.NewResetRepository(dbClient.DB()),
		Mailer:     mailSender,
		JWTConfig:  cfg.JWT,
		PasswordCf: cfg.Password,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	itemsRepo := items.NewRepository(dbClient.DB())
	itemsService, err := items.NewService(itemsRepo)
	if err != nil {
		logg.Error(ctx, "failed to create items service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	tokensService, err := tokens.NewService(tokens.NewRepository(dbClient.DB()), cfg.TokenReward, paymentMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create tokens service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		dbClient,
		orders.NewRepository(dbClient.DB()),
		itemsRepo,
		notificationsService,
		tokensService,
		paypalClient,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	webhookService, err := paypalwebhook.NewService(
		paypalClient,
		ordersService,
		redisClient,
		paymentMetrics,
		logg,
		cfg.App,
	)
	if err != nil {
		logg.Error(ctx, "failed to create webhook service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Registry:      registry,
		Auth:          authService,
		Items:         itemsService,
		Orders:        ordersService,
		Notifications: notificationsService,
		Tokens:        tokensService,
		PayPalWebhook: webhookService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-signalCtx.Done():
		logg.Info(runCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var closeErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		closeErr = multierr.Append(closeErr, err)
	}
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(runCtx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server stopped")
}

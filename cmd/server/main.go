package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/cache"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/ticketsig"
)

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unreachable, using in-process rate limiting and TTL store")
	} else {
		defer rdb.Close()
	}
	ttlStore := cache.New(rdb, "tickets")
	if mem, ok := ttlStore.(*cache.MemoryStore); ok {
		go mem.RunJanitor(ctx, time.Minute)
	}

	signer, err := ticketsig.NewSigner(cfg.QRSigningSecret)
	if err != nil {
		logger.WithError(err).Fatal("ticket signing disabled")
	}

	retry := database.DefaultRetryPolicy()
	retry.Attempts = cfg.TxAttempts
	store := repository.NewStore(db, retry, logger)

	payments := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentAccessToken, logger, nil)
	publisher := queue.NewPublisher(cfg.RabbitURL, logger)
	consumer := &queue.Consumer{URL: cfg.RabbitURL, LogDir: "logs", Logger: logger}
	go consumer.Run(ctx)

	orders := service.NewOrderService(store, payments, service.OrderConfig{
		AppURL:     cfg.AppURL,
		Currency:   cfg.Currency,
		PendingTTL: cfg.PendingOrderTTL,
	}, logger)
	issuer := service.NewIssuanceService(store, signer, logger)
	reconciler := service.NewPaymentService(store, issuer, payments, publisher, ttlStore, cfg.ReplayMemoTTL,
		service.NewWebhookAuth(cfg.WebhookSecret, cfg.IsProduction()), logger)
	checkin := service.NewCheckinService(store, signer, logger)
	coupons := service.NewCouponService(store)
	admin := service.NewAdminService(store, logger)
	auth := service.NewAuthService(repository.NewUserRepo(db), ttlStore, config.LoadLoginGuardConfig(),
		cfg.JWTSecret, cfg.AccessTTLMin, logger)

	expiry := service.NewExpiryService(store, cfg.PendingOrderTTL, cfg.ExpiryGrace, logger)
	if expiry.Enabled() {
		go expiry.Run(ctx, cfg.ExpirySweepEvery)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Recover())
	e.Use(middleware.NewCORS(config.LoadCORSConfig()))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("request")
			return nil
		},
	}))

	limiter := middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb, ttlStore, logger)
	respCache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, logger)

	adminHandler := handler.NewAdminHandler(admin, reconciler, logger)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, logger))
	router.RegisterBuyer(e, handler.NewOrderHandler(orders, reconciler, logger),
		handler.NewWebhookHandler(reconciler, logger), adminHandler, limiter, respCache)
	router.RegisterCheckin(e, handler.NewCheckinHandler(checkin, logger), cfg.JWTSecret)
	router.RegisterSales(e, handler.NewSalesHandler(issuer, coupons, logger), cfg.JWTSecret)
	router.RegisterAdmin(e, adminHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/vendora/payouts/internal/adapter/http"
	"github.com/vendora/payouts/internal/adapter/http/handler"
	"github.com/vendora/payouts/internal/adapter/http/middleware"
	postgresRepo "github.com/vendora/payouts/internal/adapter/repository/postgres"
	redisRepo "github.com/vendora/payouts/internal/adapter/repository/redis"
	"github.com/vendora/payouts/internal/currency"
	"github.com/vendora/payouts/internal/infrastructure/auth"
	"github.com/vendora/payouts/internal/infrastructure/config"
	"github.com/vendora/payouts/internal/infrastructure/eventpublisher"
	"github.com/vendora/payouts/internal/infrastructure/logger"
	"github.com/vendora/payouts/internal/infrastructure/logging"
	"github.com/vendora/payouts/internal/infrastructure/metrics"
	"github.com/vendora/payouts/internal/infrastructure/postgres"
	"github.com/vendora/payouts/internal/infrastructure/redis"
	"github.com/vendora/payouts/internal/processor"
	"github.com/vendora/payouts/internal/usecase"
	"github.com/vendora/payouts/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slogger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	payeeRepo := postgresRepo.NewPayeeRepository(pool)
	accountRepo := postgresRepo.NewMerchantAccountRepository(pool)
	balanceRepo := postgresRepo.NewBalanceRepository(pool)
	paymentRepo := postgresRepo.NewPaymentRepository(pool)
	creditRepo := postgresRepo.NewCreditRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	webhookEventRepo := postgresRepo.NewWebhookEventRepository(pool)
	retrier := postgresRepo.NewRetrier()
	idGen := postgresRepo.NewULIDGenerator()
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	// Payout processors
	converter, err := currency.NewTableConverter(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build currency converter")
	}

	m := metrics.New()
	alerter := processor.NewLogAlerter(log)

	var stripeGateway processor.Gateway
	if cfg.StripeSecretKey != "" {
		stripeGateway = processor.NewStripeGateway(cfg.StripeAPIURL, cfg.StripeSecretKey, cfg.GatewayTimeout)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, using fake gateway")
		stripeGateway = processor.NewFakeGateway()
	}

	var paypalGateway processor.Gateway
	if cfg.PayPalClientID != "" {
		paypalGateway = processor.NewPayPalGateway(cfg.PayPalAPIURL, cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.GatewayTimeout)
	} else {
		log.Warn().Msg("PAYPAL_CLIENT_ID not set, using fake gateway")
		paypalGateway = processor.NewFakeGateway()
	}

	stripe := processor.NewStripe(processor.StripeConfig{
		Gateway:           stripeGateway,
		Converter:         converter,
		Payments:          paymentRepo,
		Credits:           creditRepo,
		Alerts:            alerter,
		InstantFeePercent: cfg.InstantFeePercent,
		Logger:            log,
	})
	paypal := processor.NewPayPal(processor.PayPalConfig{
		Gateway:   paypalGateway,
		Converter: converter,
		Payments:  paymentRepo,
		Alerts:    alerter,
		Logger:    log,
	})
	registry := processor.NewRegistry(stripe, paypal)

	// Use cases
	balanceUC := usecase.NewBalanceUseCase(txManager, balanceRepo, accountRepo, registry, cache)
	eligibilityUC := usecase.NewEligibilityUseCase(payeeRepo, accountRepo, balanceRepo, paymentRepo, registry, idGen)
	payoutUC := usecase.NewPayoutUseCase(txManager, payeeRepo, paymentRepo, outboxRepo, balanceUC, eligibilityUC, registry, idGen, log)
	reconUC := usecase.NewReconciliationUseCase(paymentRepo, accountRepo, creditRepo, outboxRepo, webhookEventRepo, txManager, balanceUC, registry, idGen, log)

	// Optional JWT auth
	var jwtManager *auth.JWTManager
	var authHandler *handler.AuthHandler
	if cfg.AuthEnabled && cfg.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
		authHandler = handler.NewAuthHandler(jwtManager)
		log.Info().Msg("authentication enabled")
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					rateLimiter.CleanupStale(time.Hour)
				}
			}
		}()
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		PayeeHandler:     handler.NewPayeeHandler(payoutUC, balanceUC, eligibilityUC, reconUC),
		PaymentHandler:   handler.NewPaymentHandler(payoutUC),
		WebhookHandler:   handler.NewWebhookHandler(registry, reconUC, log),
		AuthHandler:      authHandler,
		HealthHandler:    handler.NewHealthHandler(pool, redisClient),
		JWTManager:       jwtManager,
		IdempotencyStore: idempotencyStore,
		RateLimiter:      rateLimiter,
		Logger:           log,
	})

	// Outbox publisher
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventpublisher.NewLogPublisher(slogger),
		Logger:     slogger,
		Metrics:    m,
		BatchSize:  cfg.PublisherBatchSize,
		Interval:   cfg.PublisherInterval,
		Retention:  cfg.OutboxRetention,
	})
	go func() {
		if err := publisher.Start(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	// Scheduled payout run
	if cfg.PayoutRunEnabled {
		runner := worker.NewPayoutRunner(worker.RunnerConfig{
			Payees:  payeeRepo,
			Payouts: payoutUC,
			Retrier: retrier,
			Logger:  log,
			Metrics: m,
			Workers: cfg.PayoutWorkers,
			HourUTC: cfg.PayoutScheduleHourUTC,
		})
		go func() {
			if err := runner.Start(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("payout runner stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	stop()

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

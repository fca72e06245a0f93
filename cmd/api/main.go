// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Helios authentication server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and apply embedded migrations.
//  4. Connect to Redis when configured, otherwise fall back to a no-op cache.
//  5. Open the Kafka producers for compliance and mail events.
//  6. Wire domain services and HTTP handlers.
//  7. Start background workers and the HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/taibuivan/helios/data"
	"github.com/taibuivan/helios/internal/api"
	"github.com/taibuivan/helios/internal/platform/cache"
	"github.com/taibuivan/helios/internal/platform/compliance"
	"github.com/taibuivan/helios/internal/platform/config"
	"github.com/taibuivan/helios/internal/platform/constants"
	"github.com/taibuivan/helios/internal/platform/metrics"
	"github.com/taibuivan/helios/internal/platform/middleware"
	"github.com/taibuivan/helios/internal/platform/migration"
	"github.com/taibuivan/helios/internal/platform/phone"
	pgstore "github.com/taibuivan/helios/internal/platform/postgres"
	"github.com/taibuivan/helios/internal/platform/queue"
	redisstore "github.com/taibuivan/helios/internal/platform/redis"
	"github.com/taibuivan/helios/internal/platform/sec"
	"github.com/taibuivan/helios/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	level := new(slog.LevelVar)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		level.Set(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("phone_verification_required", cfg.RequirePhoneVerification()),
		slog.Bool("login_otp_required", cfg.Auth.LoginOTPRequired),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	if cfg.AutoMigrate {
		must(log, migration.RunUp(cfg.DatabaseURL, data.Migrations, data.MigrationsDir, log), "run migrations")
	}

	checks := []api.HealthCheck{{
		Name:  "postgres",
		Check: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
	}}

	// ── 4. Redis ──────────────────────────────────────────────────────────
	var store cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		store = cache.NewRedis(rdb, log)
		checks = append(checks, api.HealthCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
			Optional: true,
		})
	} else {
		log.Warn("redis_disabled", slog.String("reason", "REDIS_URL is empty, OTP state will not persist"))
	}

	// ── 5. Event Streams ──────────────────────────────────────────────────
	// Requests only enqueue; one goroutine per topic talks to the broker.
	compliancePublisher := queue.NewAsyncPublisher(newPublisher(cfg, cfg.KafkaComplianceTopic, log), cfg.EventBufferSize, cfg.EventPublishTimeout, log)
	mailPublisher := queue.NewAsyncPublisher(newPublisher(cfg, cfg.KafkaMailTopic, log), cfg.EventBufferSize, cfg.EventPublishTimeout, log)
	defer closePublisher(log, compliancePublisher)
	defer closePublisher(log, mailPublisher)

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	tokens, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, cfg.JWTIssuer, cfg.JWTAudience)
	must(log, err, "initialize jwt service")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	phones := phone.NewVerifier(store, phone.LogSender{})

	authService := auth.NewService(auth.Dependencies{
		Store:    auth.NewPostgresStore(pool),
		Tokens:   tokens,
		Hasher:   sec.PasswordHasher{},
		Cache:    store,
		Phones:   phones,
		Audit:    compliance.NewEventLogger(compliancePublisher),
		Notifier: auth.NewQueueResetNotifier(mailPublisher),
		Metrics:  appMetrics,
	}, auth.Policy{
		MaxLoginAttempts:         cfg.Auth.MaxLoginAttempts,
		LockDuration:             cfg.Auth.AccountLockDuration,
		AccessTokenTTL:           cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:          cfg.Auth.RefreshTokenTTL,
		ResetTokenTTL:            cfg.Auth.ResetTokenTTL,
		RequirePhoneVerification: cfg.RequirePhoneVerification(),
		LoginOTPRequired:         cfg.Auth.LoginOTPRequired,
		PhoneRegion:              cfg.PhoneDefaultRegion,
	})

	liveness, readiness := api.NewHealthHandlers(checks, log)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	server := api.NewServer(cfg, log, tokens, limiter, appMetrics, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService),
		Phone:     phone.NewHandler(phones, cfg.PhoneDefaultRegion),
	})

	// ── 7. Background Workers ─────────────────────────────────────────────
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	go auth.NewSessionJanitor(authService, cfg.SessionSweepInterval, log).Run(workerCtx)
	go limiter.Sweep(workerCtx)

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	stopWorkers()

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		return
	}

	log.Info("server stopped cleanly")
}

// newPublisher returns a Kafka producer for topic, or a log sink when no
// brokers are configured.
func newPublisher(cfg *config.Config, topic string, log *slog.Logger) queue.Publisher {
	if !cfg.KafkaEnabled() {
		log.Warn("kafka_disabled", slog.String("topic", topic))
		return queue.NewLogPublisher(log, topic)
	}
	return queue.NewProducer(queue.ProducerConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		Username: cfg.KafkaUsername,
		Password: cfg.KafkaPassword,
		TLS:      cfg.KafkaTLS,
	})
}

func closePublisher(log *slog.Logger, publisher queue.Publisher) {
	if err := publisher.Close(); err != nil {
		log.Error("publisher close error", slog.Any("error", err))
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/infra/config"
	"github.com/arklim/account-auth/internal/infra/database"
	kafkainfra "github.com/arklim/account-auth/internal/infra/kafka"
	"github.com/arklim/account-auth/internal/infra/logger"
	mailinfra "github.com/arklim/account-auth/internal/infra/mail"
	redisinfra "github.com/arklim/account-auth/internal/infra/redis"
	"github.com/arklim/account-auth/internal/infra/security"
	"github.com/arklim/account-auth/internal/infra/telemetry"
	"github.com/arklim/account-auth/internal/repository/memory"
	postgresrepo "github.com/arklim/account-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/account-auth/internal/repository/redis"
	"github.com/arklim/account-auth/internal/transport/http/middleware"
	"github.com/arklim/account-auth/internal/transport/http/routes"
	"github.com/arklim/account-auth/internal/usecase"
)

const defaultShutdownTimeout = 10 * time.Second

// Application owns the HTTP server and every backend connection it opened.
type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	auth    *usecase.AuthService
	closers []func(ctx context.Context) error
}

// New wires the auth service from configuration. Connections opened before a
// failure are closed again.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	readiness := make(map[string]func(ctx context.Context) error)

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.TracingEnabled {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.closers = append(a.closers, tracer.Shutdown)
	}

	store, err := a.openStore(ctx, readiness)
	if err != nil {
		return nil, err
	}

	flags, err := a.openFlags(ctx, store, readiness)
	if err != nil {
		return nil, err
	}

	hasher, err := security.NewHasher(security.HasherConfig{
		Algorithm:  cfg.Hasher.Algorithm,
		BcryptCost: cfg.Hasher.BcryptCost,
		Argon2: security.Argon2Config{
			Memory:      cfg.Hasher.Argon2.Memory,
			Iterations:  cfg.Hasher.Argon2.Iterations,
			Parallelism: cfg.Hasher.Argon2.Parallelism,
			SaltLength:  cfg.Hasher.Argon2.SaltLength,
			KeyLength:   cfg.Hasher.Argon2.KeyLength,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init hasher: %w", err)
	}

	mailer, err := a.openMailer()
	if err != nil {
		return nil, err
	}

	auth := usecase.NewAuthService(store, flags, hasher, security.NewTOTP(cfg.TOTP.Issuer), mailer).
		WithLogger(log.Named("auth")).
		WithEvents(a.openPublisher()).
		WithRecoveryTTL(cfg.Tickets.RecoveryTTL).
		WithSystemTicketTTL(cfg.Tickets.SystemTicketTTL)
	if tracer != nil {
		auth.WithTracer(tracer.Tracer("github.com/arklim/account-auth/usecase"))
	}

	var httpMetrics *middleware.HTTPMetrics
	if cfg.Telemetry.MetricsEnabled {
		authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer, "auth")
		if err != nil {
			return nil, fmt.Errorf("init auth metrics: %w", err)
		}
		auth.WithMetrics(authMetrics)

		httpMetrics, err = middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
		if err != nil {
			return nil, fmt.Errorf("init http metrics: %w", err)
		}
	}

	a.auth = auth
	a.engine = routes.Register(routes.Dependencies{
		Config:    cfg,
		Logger:    log,
		Auth:      auth,
		Metrics:   httpMetrics,
		Readiness: readiness,
	})

	return a, nil
}

func (a *Application) openStore(ctx context.Context, readiness map[string]func(context.Context) error) (port.Store, error) {
	if a.cfg.Store.Driver == config.DriverMemory {
		a.logger.Warn("using in-memory store; accounts are lost on restart")
		return memory.NewStore(), nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		pool.Close()
		return nil
	})

	if a.cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pool, a.cfg.Postgres, a.logger); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	store := postgresrepo.NewStore(pool)
	readiness["database"] = store.Ping
	return store, nil
}

func (a *Application) openFlags(ctx context.Context, store port.Store, readiness map[string]func(context.Context) error) (port.FlagSource, error) {
	switch a.cfg.Flags.Source {
	case config.DriverRedis:
		client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		readiness["redis"] = client.HealthCheck
		return redisrepo.NewFlagRepository(client.Client(), a.cfg.Redis.FlagPrefix), nil
	case config.DriverPostgres:
		pgStore, ok := store.(*postgresrepo.Store)
		if !ok {
			return nil, errors.New("postgres flags require the postgres store")
		}
		return pgStore.Flags(), nil
	default:
		return memory.NewFlagStore(), nil
	}
}

func (a *Application) openMailer() (port.Mailer, error) {
	if !a.cfg.SMTP.Enabled {
		a.logger.Info("smtp disabled, mail will be logged")
		return mailinfra.NewLogMailer(a.logger.Named("mail")), nil
	}

	mailer, err := mailinfra.NewSMTPMailer(a.cfg.SMTP, a.logger.Named("mail"))
	if err != nil {
		return nil, fmt.Errorf("init smtp: %w", err)
	}
	return mailer, nil
}

func (a *Application) openPublisher() port.EventPublisher {
	if !a.cfg.Kafka.Enabled {
		a.logger.Info("kafka disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger.Named("events"))
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger.Named("events"))
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })

	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// Auth exposes the wired service for administrative commands.
func (a *Application) Auth() *usecase.AuthService {
	return a.auth
}

// Close releases resources in reverse order of acquisition. Run calls it on
// shutdown; one-shot commands call it directly.
func (a *Application) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	shutdownTimeout := a.cfg.App.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("store", a.cfg.Store.Driver),
		zap.String("flags", a.cfg.Flags.Source),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown server: %w", err)
	}
	a.Close(shutdownCtx)

	return runErr
}

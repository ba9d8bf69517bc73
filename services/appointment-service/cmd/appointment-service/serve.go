package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/appointly/libs/auth"
	"github.com/md-rashed-zaman/appointly/libs/db"
	"github.com/md-rashed-zaman/appointly/libs/httpx"
	"github.com/md-rashed-zaman/appointly/libs/kafkax"
	otelx "github.com/md-rashed-zaman/appointly/libs/otel"
	"github.com/md-rashed-zaman/appointly/libs/runtime"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/grpcserver"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/handlers"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/outbox"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/storage"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/migrations"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health and the outbox publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg settings) error {
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext(parent)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
		TimeZone: cfg.Location.String(),
	})
	if err != nil {
		return fmt.Errorf("db connection failed: %w", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := migrateUp(ctx, pool); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	outboxRepo := outbox.NewRepository()
	store := storage.NewStore(pool, outboxRepo)
	svc := lifecycle.NewService(store, storage.NewDirectory(pool), logger, lifecycle.WithLocation(cfg.Location))

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPollEvery,
		BatchSize: cfg.OutboxBatchSize,
	})
	go publisher.Run(ctx)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if len(kafkax.SplitBrokers(cfg.KafkaBrokers)) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	var limiter httpx.Limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMin, time.Minute)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMin, time.Minute, cfg.Service+":rl:")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	var jwks *auth.JWKSClient
	if cfg.JWKSURL != "" {
		jwks = auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSCache)
	}
	authn := auth.RequireAuth(auth.NewVerifier(cfg.JWTSecret, jwks))

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewAppointmentHandler(svc, logger, cfg.SlotDay).Register(mux, authn)
	if cfg.JWTSecret != "" {
		handlers.NewSessionHandler(auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL), logger).Register(mux, authn)
	} else {
		logger.Warn("role switching disabled (no JWT_SECRET to sign tokens)")
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.RateLimit(limiter, httpx.ClientIP, logger, cfg.RateLimitFailOpen),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointment")

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcSrv := grpcserver.New(logger, 5*time.Second, checks...)
	go func() {
		if err := grpcSrv.Serve(ctx, lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

func migrateUp(ctx context.Context, pool *db.Pool) error {
	m, err := db.NewMigrator(pool, migrations.FS, migrations.Dir)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up(ctx)
}

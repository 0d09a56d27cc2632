package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waste3d/coursemarket-api/internal/application/relay"
	"github.com/waste3d/coursemarket-api/internal/application/usecase"
	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/broker"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/cache"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/identity"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/payment"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
	"github.com/waste3d/coursemarket-api/internal/metrics"
	"github.com/waste3d/coursemarket-api/internal/middleware"
	"github.com/waste3d/coursemarket-api/internal/obs"
	grpc_server "github.com/waste3d/coursemarket-api/internal/transport/grpc"
	handlers "github.com/waste3d/coursemarket-api/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, internal gRPC API and outbox relay",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer closeDB(db)
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// лимитер и кэш событий без redis пропускают запросы, корректность держит база
		obs.Logger.Warn("redis unavailable", "addr", cfg.RedisAddr, "err", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessions, err := identity.NewSessionVerifier(cfg.SessionJWTSecret, cfg.SessionJWTPublicKey)
	if err != nil {
		return err
	}
	clerk, err := identity.NewWebhookVerifier(cfg.ClerkWebhookSecret)
	if err != nil {
		return err
	}
	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		FrontendURL:   cfg.FrontendURL,
	})
	events := cache.NewEventCache(rdb)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)

	purchaseUC := usecase.NewPurchaseUseCase(userRepo, courseRepo, purchaseRepo, enrollmentRepo, webhookRepo, gateway, events, m,
		usecase.PurchaseOptions{
			Currency:    cfg.Currency,
			MaxAttempts: cfg.ProviderMaxAttempts,
			Backoff:     cfg.ProviderBackoff,
			Timeout:     cfg.ProviderTimeout,
		})
	progressUC := usecase.NewProgressUseCase(progressRepo, enrollmentRepo, cfg.ProgressRequireEnrollment)
	catalogUC := usecase.NewCatalogUseCase(userRepo, courseRepo, enrollmentRepo, progressRepo, cfg.Currency)
	identityUC := usecase.NewIdentityUseCase(userRepo, webhookRepo, clerk, events)

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterConfig{
		AllowedOrigins: cfg.Origins(),
		Sessions:       sessions,
		Limiter:        middleware.NewRateLimiter(rdb),
		PurchaseLimit:  cfg.RateLimitPurchase,
		Metrics:        m,
		Ready:          sqlDB.PingContext,
	}, handlers.Handlers{
		Purchase: handlers.NewPurchaseHandler(purchaseUC),
		Progress: handlers.NewProgressHandler(progressUC),
		User:     handlers.NewUserHandler(catalogUC),
		Course:   handlers.NewCourseHandler(catalogUC),
		Webhook:  handlers.NewWebhookHandler(purchaseUC, identityUC),
	})
	httpSrv := &http.Server{Addr: cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	grpcSrv := grpc_server.NewServer(grpc_server.NewEnrollmentServer(catalogUC, progressUC))
	lis, err := net.Listen("tcp", cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen failed: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		obs.Logger.Info("http server listening", "addr", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()
	go func() {
		obs.Logger.Info("grpc server listening", "addr", cfg.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	waitRelay := func() {}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		pub := broker.NewKafkaPublisher(brokers)
		r := relay.NewOutboxRelay(repository.NewOutboxRepository(db), pub, m, cfg.OutboxPollInterval,
			map[string]string{domain.TopicEnrollmentCompleted: cfg.KafkaEnrollmentTopic})
		waitRelay = startBackground(ctx, r.Run, pub)
		obs.Logger.Info("outbox relay started", "brokers", brokers, "topic", cfg.KafkaEnrollmentTopic)
	} else {
		obs.Logger.Warn("KAFKA_BROKERS not set, enrollment events stay in the outbox")
	}

	var runErr error
	select {
	case <-ctx.Done():
		obs.Logger.Info("shutdown signal received")
	case runErr = <-errCh:
		obs.Logger.Error("server failed", "err", runErr)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		obs.Logger.Error("http shutdown", "err", err)
	}
	grpcSrv.GracefulStop()
	// relay пишет в kafka и базу: закрываем их только после его выхода
	stop()
	waitRelay()
	obs.Logger.Info("stopped")
	return runErr
}

package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	webAdapter "stockroom/internal/adapters/web"
	"stockroom/internal/app"
	"stockroom/internal/cache"
	"stockroom/internal/config"
	"stockroom/internal/core"
	"stockroom/internal/db"
	"stockroom/internal/events"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	rdb := cache.New(cfg.RedisAddr)
	if rdb != nil {
		if err := rdb.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, running without cache", zap.Error(err))
			rdb = nil
		}
		defer rdb.Close()
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 1024, logger)
	publisher.Start(ctx)

	userService := core.NewUserService(pool)
	catalogService := core.NewCatalogService(pool)
	stockService := core.NewStockService(pool)
	sequenceService := core.NewSequenceService(pool)
	orderService := core.NewOrderService(pool, stockService, sequenceService)
	purchaseService := core.NewPurchaseOrderService(pool, stockService, sequenceService)

	svc := app.NewAppService(userService, catalogService, stockService, orderService, purchaseService, rdb, publisher)

	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.JWTSecret, logger)

	srv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
		publisher.WaitClosed()
	}()

	logger.Info("server starting", zap.String("port", cfg.ServerPort))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server", zap.Error(err))
	}
}

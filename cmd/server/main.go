package main // Entry point package

import (
    "context"
    "log"
    "os"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/splitkart/split-backend/internal/config"
    "github.com/splitkart/split-backend/internal/conversation"
    "github.com/splitkart/split-backend/internal/database"
    "github.com/splitkart/split-backend/internal/handler"
    "github.com/splitkart/split-backend/internal/middleware"
    "github.com/splitkart/split-backend/internal/payment"
    "github.com/splitkart/split-backend/internal/queue"
    "github.com/splitkart/split-backend/internal/repository"
    "github.com/splitkart/split-backend/internal/router"
    "github.com/splitkart/split-backend/internal/service"
)

func main() {
    _ = godotenv.Load() // .env is optional; real environments set vars directly

    cfg := config.Load()

    logger, err := zap.NewProduction()
    if cfg.Env == "dev" {
        logger, err = zap.NewDevelopment()
    }
    if err != nil {
        log.Fatalf("init logger: %v", err)
    }
    defer func() { _ = logger.Sync() }()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        logger.Fatal("connect database", zap.Error(err))
    }
    defer db.Close()

    rdb := config.NewRedisClient()

    // Repositories
    splitRepo := repository.NewSplitRepo(db)
    orderRepo := repository.NewOrderRepo(db)
    convoRepo := repository.NewConversationRepo(db)
    userRepo := repository.NewUserRepo(db)

    // External collaborators
    gateway := payment.NewClient(cfg.PaymentAPIBase, cfg.PaymentSecretKey, logger)
    chat := conversation.NewClient(cfg.ConversationAPIBase, cfg.ConversationToken, logger)

    // Services
    seats := service.NewSeatEngine(splitRepo, convoRepo, chat, logger)
    splits := service.NewSplitService(db, splitRepo, convoRepo, chat, logger)
    orders := service.NewOrderService(db, orderRepo, splitRepo, userRepo, seats, gateway, chat, cfg.PlatformFeePercent, logger)
    orch := service.NewOrchestrator(db, orderRepo, splitRepo, convoRepo, seats, gateway, chat, logger)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    // Daily expiration sweep
    sweeper := service.NewSweeper(splitRepo, orch, chat, cfg.SweepHourUTC, logger)
    sweeper.Start(ctx)

    // Lifecycle event consumer (reconnects on its own)
    go func() {
        if err := queue.StartLifecycleConsumer(); err != nil {
            logger.Error("lifecycle consumer stopped", zap.Error(err))
        }
    }()

    e := echo.New()
    e.HideBanner = true
    e.Use(middleware.Metrics())

    splitHandler := handler.NewSplitHandler(splits, orch)
    orderHandler := handler.NewOrderHandler(orders, orch, orderRepo)
    webhookHandler := handler.NewWebhookHandler(orders, rdb, cfg.PaymentWebhookSecret, logger)

    router.RegisterRoutes(e, webhookHandler)
    router.RegisterPublic(e, splitHandler, rdb)
    router.RegisterProtected(e, splitHandler, orderHandler, cfg.JWTSecret, rdb)

    addr := ":" + cfg.Port
    logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))

    go func() {
        <-ctx.Done()
        _ = e.Shutdown(context.Background())
    }()
    if err := e.Start(addr); err != nil {
        logger.Info("server stopped", zap.Error(err))
    }
}

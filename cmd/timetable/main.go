package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetable/internal/app"
	"github.com/Freeeeeet/timetable/internal/cache"
	"github.com/Freeeeeet/timetable/internal/config"
	"github.com/Freeeeeet/timetable/internal/controller"
	"github.com/Freeeeeet/timetable/internal/controller/httpapi"
	"github.com/Freeeeeet/timetable/internal/repository"
	"github.com/Freeeeeet/timetable/internal/repository/memory"
	"github.com/Freeeeeet/timetable/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting timetable service",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage),
		zap.Int("max_slot", cfg.MaxSlot))

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer closeStore()

	var listCache service.ListCache
	if cfg.RedisAddr != "" {
		timetableCache, err := cache.Connect(ctx, cfg.RedisAddr, cfg.CacheTTL, logger)
		if err != nil {
			// без кеша сервис работает, просто медленнее
			logger.Warn("Redis unavailable, list cache disabled", zap.Error(err))
		} else {
			defer timetableCache.Close()
			listCache = timetableCache
		}
	}

	scheduleService := service.NewScheduleService(store, listCache, cfg.MaxSlot, logger)

	scheduler := app.NewScheduler(scheduleService, cfg.AuditInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.TelegramToken != "" {
		startBot(ctx, cfg.TelegramToken, scheduleService, logger)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(scheduleService, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
}

// openStore выбирает хранилище по STORAGE и применяет миграции для postgres
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.EntryStore, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	migrator, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return repository.NewScheduleEntryRepository(pool, logger), pool.Close, nil
}

func startBot(ctx context.Context, token string, scheduleService *service.ScheduleService, logger *zap.Logger) {
	b, err := bot.New(token)
	if err != nil {
		logger.Error("Failed to create Telegram bot, continuing without it", zap.Error(err))
		return
	}

	botController := controller.NewBotController(b, scheduleService, logger)
	if err := botController.RegisterHandlers(ctx); err != nil {
		logger.Warn("Bot commands were not registered", zap.Error(err))
	}

	go botController.Start(ctx)
}

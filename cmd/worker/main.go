// Package main runs the background worker that retries failed ticket emails.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/emberfest/backend/config"
	"github.com/emberfest/backend/internal/notifications"
	"github.com/emberfest/backend/internal/notify"
	"github.com/emberfest/backend/internal/registrations"
	"github.com/emberfest/backend/internal/worker"
	"github.com/emberfest/backend/pkg/database"
	"github.com/emberfest/backend/pkg/queue"
	"github.com/emberfest/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	notifier := notify.NewResendNotifier(cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.FromName, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	regRepo := registrations.NewRepository(pool)
	notifRepo := notifications.NewRepository(pool)

	processor := worker.NewTicketEmailProcessor(regRepo, notifier, jobQueue, notifRepo, cfg.Event.Name, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

// Package main runs the event registration HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/emberfest/backend/config"
	"github.com/emberfest/backend/internal/middleware"
	"github.com/emberfest/backend/internal/notifications"
	"github.com/emberfest/backend/internal/notify"
	"github.com/emberfest/backend/internal/payments"
	"github.com/emberfest/backend/internal/registrations"
	"github.com/emberfest/backend/pkg/database"
	"github.com/emberfest/backend/pkg/queue"
	"github.com/emberfest/backend/pkg/redis"
	"github.com/emberfest/backend/pkg/response"
	"github.com/emberfest/backend/pkg/storage"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.TicketsBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TicketsBucket:        cfg.AWS.TicketsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("ticket archive disabled", zap.Error(err))
			s3Client = nil
		}
	}

	gateway := payments.NewStripeGateway(cfg.Stripe.SecretKey, logger)
	notifier := notify.NewResendNotifier(cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.FromName, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	regRepo := registrations.NewRepository(pool)
	notifRepo := notifications.NewRepository(pool)

	svc := registrations.NewService(regRepo, gateway, notifier, registrations.Config{
		Prices: payments.PriceTable{
			Tiers:            cfg.Event.Tiers,
			BasePrice:        cfg.Event.BasePriceMinorUnits,
			SurchargePercent: cfg.Event.SurchargePercent,
			Currency:         cfg.Event.Currency,
		},
		PublicBaseURL:     cfg.Event.PublicBaseURL,
		EventName:         cfg.Event.Name,
		AdminPassword:     cfg.Admin.Password,
		AdminPasswordHash: cfg.Admin.PasswordHash,
	}, logger)
	svc.SetRetryQueue(jobQueue)
	svc.SetNotificationRecorder(notifRepo)
	if s3Client != nil {
		svc.SetTicketArchive(s3Client)
	}

	regHandler := registrations.NewHandler(svc, logger)
	notifHandler := notifications.NewHandler(notifRepo, cfg.Admin.Password, cfg.Admin.PasswordHash, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public registration flow
	router.POST("/create-checkout", regHandler.CreateCheckout)
	router.POST("/confirm-payment", regHandler.ConfirmPayment)

	// Door scan (shared credential in body)
	router.POST("/verify", regHandler.Verify)

	// Operator surface (shared credential in query/body; checked per handler)
	admin := router.Group("/admin")
	{
		admin.GET("/registrations", regHandler.List)
		admin.POST("/registrations/:id/resend-ticket", regHandler.ResendTicket)
		admin.GET("/notifications", notifHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

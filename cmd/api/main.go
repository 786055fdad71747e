package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vectra/vtu-backend/internal/application/command"
	"github.com/vectra/vtu-backend/internal/application/middleware"
	"github.com/vectra/vtu-backend/internal/application/query"
	"github.com/vectra/vtu-backend/internal/domain/service"
	"github.com/vectra/vtu-backend/internal/infrastructure/config"
	"github.com/vectra/vtu-backend/internal/infrastructure/external/iacafe"
	"github.com/vectra/vtu-backend/internal/infrastructure/logging"
	"github.com/vectra/vtu-backend/internal/infrastructure/persistence/pool"
	"github.com/vectra/vtu-backend/internal/infrastructure/persistence/repository"
	app_handler "github.com/vectra/vtu-backend/internal/interfaces/http/handlers"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logging.Init(&cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	logging.Logger.Info("Starting VTU API server",
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Sentry.Environment),
	)

	// Initialize database connection
	ctx := context.Background()
	dbPool, err := pool.NewPool(ctx, cfg.Database)
	if err != nil {
		logging.Logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close(dbPool)

	if err := pool.Ping(ctx, dbPool); err != nil {
		logging.Logger.Fatal("Failed to ping database", zap.Error(err))
	}

	// Initialize Redis (rate limiting)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       0,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logging.Logger.Fatal("Failed to ping Redis", zap.Error(err))
	}

	// Vendor gateway: explicit configuration, no process-wide singleton
	gateway, err := iacafe.NewClient(cfg.Vendor, logging.WithComponent("iacafe"))
	if err != nil {
		logging.Logger.Fatal("Failed to create vendor client", zap.Error(err))
	}

	// Repositories and services
	transactionRepo := repository.NewTransactionRepository(dbPool)
	webhookService := service.NewWebhookService(transactionRepo, cfg.Webhook.Secret, logging.WithComponent("webhook"))
	reconciliationService := service.NewReconciliationService(
		transactionRepo,
		gateway,
		cfg.Reconciliation.StuckTimeout,
		logging.WithComponent("reconciliation"),
	)

	// Commands and queries
	purchaseCmd := command.NewPurchaseCommand(transactionRepo, gateway, logging.WithComponent("purchase"))
	transactionQuery := query.NewTransactionQuery(transactionRepo)

	// Middleware
	rateLimiter := middleware.NewRateLimiter(redisClient, true, logging.Logger) // fail open

	// Handlers
	airtimeHandler := app_handler.NewAirtimeHandler(purchaseCmd, transactionQuery)
	dataHandler := app_handler.NewDataHandler(purchaseCmd, transactionQuery, gateway)
	webhookHandler := app_handler.NewWebhookHandler(webhookService)
	transactionHandler := app_handler.NewTransactionHandler(reconciliationService)

	// Setup Gin router
	if cfg.Sentry.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		logging.RequestMiddleware(logging.Logger),
	)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Webhook route (no auth, verified by signature)
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/iacafe", webhookHandler.IACafeWebhook)
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		airtime := v1.Group("/airtime")
		{
			airtime.POST("/purchase",
				rateLimiter.Middleware(middleware.ByIP, middleware.PurchaseConfig),
				airtimeHandler.Purchase,
			)
			airtime.GET("/status/:request_id",
				rateLimiter.Middleware(middleware.ByIP, middleware.PollingConfig),
				airtimeHandler.Status,
			)
		}

		data := v1.Group("/data")
		{
			data.POST("/purchase",
				rateLimiter.Middleware(middleware.ByIP, middleware.PurchaseConfig),
				dataHandler.Purchase,
			)
			data.GET("/status/:request_id",
				rateLimiter.Middleware(middleware.ByIP, middleware.PollingConfig),
				dataHandler.Status,
			)
			data.GET("/plans", dataHandler.Plans)
		}
	}

	// Reconciliation routes, triggered by operators or an external scheduler
	transactions := router.Group("/transactions")
	{
		transactions.GET("/requery/:request_id", transactionHandler.Requery)
		transactions.POST("/refund/:request_id",
			middleware.OperatorMiddleware(cfg.Operator.JWTSecret),
			transactionHandler.Refund,
		)
	}

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	go func() {
		logging.Logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("Server exited")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wellwatchhq/wellwatch/internal/cache"
	"github.com/wellwatchhq/wellwatch/internal/config"
	"github.com/wellwatchhq/wellwatch/internal/database"
	"github.com/wellwatchhq/wellwatch/internal/email"
	"github.com/wellwatchhq/wellwatch/internal/freshness"
	"github.com/wellwatchhq/wellwatch/internal/handlers"
	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/matching"
	"github.com/wellwatchhq/wellwatch/internal/middleware"
	"github.com/wellwatchhq/wellwatch/internal/pipeline"
	"github.com/wellwatchhq/wellwatch/internal/repository"
	"github.com/wellwatchhq/wellwatch/internal/routing"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting WellWatch API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Registries and stores
	parcelStore := repository.NewParcelRepository(db)
	wellStore := repository.NewTrackedWellRepository(db)
	subscriberStore := repository.NewSubscriberRepository(db)
	orgStore := repository.NewOrganizationRepository(db)
	alertStore := repository.NewAlertRepository(db)
	pendingStore := repository.NewPendingRepository(db)
	feedStore := repository.NewFeedStatusRepository(db)

	operatorDir := repository.NewCachedOperatorDirectory(
		repository.NewOperatorDirectory(db),
		cache.NewTTL[string, string](),
		cfg.Engine.OperatorCacheTTL,
	)

	// Email path: the manual-trigger surface delivers through the real
	// provider in production and a capture-only mock elsewhere.
	var provider email.Provider
	if cfg.Email.BrevoAPIKey != "" {
		provider = email.NewBrevoProvider(cfg.Email.BrevoAPIKey, cfg.Email.FromAddr, cfg.Email.FromName, log)
	} else {
		log.Warn("BREVO_API_KEY not set, using in-memory mock provider", nil)
		provider = email.NewMockProvider()
	}
	sender := email.NewSender(provider, cfg.Email.SendsPerSecond, cfg.Email.OperatorAddr, log)

	// Core pipeline
	engine := matching.NewEngine(parcelStore, wellStore, subscriberStore, orgStore, log)
	router2 := routing.NewRouter(orgStore, pendingStore, sender, operatorDir, log)
	pipe := pipeline.New(engine, router2, alertStore, cfg.Engine.DedupWindow, log)

	monitor := freshness.NewMonitor(feedStore, cfg.Engine.StaleThreshold, log)

	// Handlers
	triggerHandler := handlers.NewTriggerHandler(pipe)
	feedHandler := handlers.NewFeedHandler(feedStore, monitor)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		activity := v1.Group("/activity")
		{
			activity.POST("/trigger", triggerHandler.Trigger)
		}
		feeds := v1.Group("/feeds")
		{
			feeds.GET("/status", feedHandler.Status)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}

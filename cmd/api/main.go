package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"moneta/internal/cache"
	"moneta/internal/config"
	"moneta/internal/engine"
	"moneta/internal/handlers"
	"moneta/internal/lifecycle"
	"moneta/internal/logger"
	"moneta/internal/middleware"
	"moneta/internal/remote"
	"moneta/internal/validator"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	validator.Register()

	localCache, err := cache.Open(cfg.CachePath)
	if err != nil {
		return fmt.Errorf("failed to open local cache: %w", err)
	}
	defer func() { _ = localCache.Close() }()

	if cfg.RemoteBaseURL == "" {
		log.Warn("REMOTE_BASE_URL is not set; running offline against the local cache")
	}
	gateway := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteAPIKey, cfg.RemoteDocumentID,
		&http.Client{Timeout: cfg.RemoteTimeout})
	if err := localCache.SetDocumentID(gateway.DocumentID()); err != nil {
		return fmt.Errorf("failed to bind remote document: %w", err)
	}

	syncEngine := engine.New(localCache, gateway)
	coordinator := lifecycle.New(syncEngine, cfg.SyncInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coordinator.Start(ctx)
	defer coordinator.Close()

	transactionHandler := handlers.NewTransactionHandler(localCache)
	categoryHandler := handlers.NewCategoryHandler(localCache)
	syncHandler := handlers.NewSyncHandler(localCache, coordinator)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors.Default())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "initialized": coordinator.Initialized()})
	})

	transactions := router.Group("/transactions")
	transactions.GET("", transactionHandler.List)
	transactions.POST("", transactionHandler.Create)
	transactions.PUT("/:id", transactionHandler.Update)
	transactions.DELETE("/:id", transactionHandler.Delete)

	categories := router.Group("/categories")
	categories.GET("", categoryHandler.List)
	categories.POST("", categoryHandler.Create)
	categories.PUT("/:id", categoryHandler.Update)
	categories.DELETE("/:id", categoryHandler.Delete)

	syncRoutes := router.Group("/sync")
	syncRoutes.GET("", syncHandler.Export)
	syncRoutes.POST("", syncHandler.Import)
	syncRoutes.GET("/status", syncHandler.Status)
	syncRoutes.POST("/refresh", syncHandler.Refresh)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oms-platform/reconciliation-service/internal/api/handlers"
	"github.com/oms-platform/reconciliation-service/internal/application"
	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/internal/infrastructure/carriers"
	mongoRepo "github.com/oms-platform/reconciliation-service/internal/infrastructure/mongodb"
	"github.com/oms-platform/reconciliation-service/internal/infrastructure/sheets"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
	"github.com/oms-platform/reconciliation-service/pkg/middleware"
	"github.com/oms-platform/reconciliation-service/pkg/mongodb"
)

const serviceName = "reconciliation-service"

func main() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	if err := run(context.Background(), quit); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, quit <-chan os.Signal) error {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting reconciliation-service API")

	config := loadConfig()

	m := metrics.New(metrics.DefaultConfig(serviceName))

	// MongoDB
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		return err
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	productRepo := mongoRepo.NewProductRepository(mongoClient.Database(), m)
	deliveryRepo := mongoRepo.NewDeliveryRepository(mongoClient.Database(), m)

	// Tabular order store
	sheetClient := sheets.NewClient(config.Sheet, logger)

	// Carrier feeds
	feedClient := carriers.NewHTTPFeedClient(logger, m)

	// Application services
	scanner := application.NewCarrierScanner(feedClient, logger, m)
	matcher := application.NewCatalogMatcher(productRepo, logger)
	stockService := application.NewStockService(matcher, productRepo, logger, m)

	dispatcher := application.NewDispatcher(config.DispatchQueueSize, config.DispatchTimeout, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	reconcileService := application.NewReconcileService(
		scanner,
		stockService,
		dispatcher,
		deliveryRepo,
		sheetClient,
		config.Profiles,
		config.Reconcile,
		logger,
		m,
	)

	scheduler := application.NewScheduler(reconcileService, config.ReconcileInterval, logger, m)
	if err := scheduler.Start(); err != nil {
		logger.WithError(err).Error("Failed to start scheduler")
		return err
	}
	defer scheduler.Stop()

	// HTTP server
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.Metrics(m))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api/v1")
	handlers.NewReconcileHandler(scheduler, logger).RegisterRoutes(api)
	handlers.NewDeliveryHandler(reconcileService, deliveryRepo, logger).RegisterRoutes(api)
	handlers.NewStockHandler(stockService, logger).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Server started", "addr", config.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()

	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
	return nil
}

// Config holds application configuration
type Config struct {
	ServerAddr        string
	MongoDB           *mongodb.Config
	Sheet             sheets.Config
	Reconcile         application.ReconcileConfig
	Profiles          map[domain.DeliveryType]domain.CarrierProfile
	ReconcileInterval time.Duration
	DispatchQueueSize int
	DispatchTimeout   time.Duration
}

func loadConfig() *Config {
	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", "mongodb://localhost:27017")
	mongoConfig.Database = getEnv("MONGODB_DATABASE", "oms")

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		MongoDB:    mongoConfig,
		Sheet: sheets.Config{
			BaseURL: getEnv("SHEET_BASE_URL", "http://localhost:8090"),
			Token:   getEnv("SHEET_TOKEN", ""),
		},
		Reconcile: application.ReconcileConfig{
			SheetTab:     getEnv("SHEET_TAB", "Orders"),
			StatusHeader: getEnv("SHEET_STATUS_HEADER", "Status"),
		},
		Profiles: map[domain.DeliveryType]domain.CarrierProfile{
			domain.DeliveryTypeDHD: {
				Label:   "dhd",
				BaseURL: getEnv("DHD_API_URL", ""),
				Token:   getEnv("DHD_API_TOKEN", ""),
			},
			domain.DeliveryTypeSook: {
				Label:   "sook",
				BaseURL: getEnv("SOOK_API_URL", ""),
				Token:   getEnv("SOOK_API_TOKEN", ""),
			},
		},
		ReconcileInterval: getDurationEnv("RECONCILE_INTERVAL", 10*time.Minute),
		DispatchQueueSize: 64,
		DispatchTimeout:   getDurationEnv("DISPATCH_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

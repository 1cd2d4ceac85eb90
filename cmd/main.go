package main

import (
	"brandreport-service/internal/handler"
	"brandreport-service/internal/middleware"
	"brandreport-service/internal/store"
	"brandreport-service/pkg/config"
	"brandreport-service/pkg/database"
	"brandreport-service/pkg/jwtutil"
	"brandreport-service/pkg/logger"
	"brandreport-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting brand report service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	h := handler.New(store.NewGormStore(database.GetDB()), cfg)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Login is the only unauthenticated auth route; registration is an
	// admin action and lives under the protected API.
	auth := e.Group("/auth")
	auth.POST("/login", h.Login)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.POST("/auth/register", h.Register)
	api.GET("/auth/verify", h.Verify)

	// Brand management
	brands := api.Group("/brands")
	brands.GET("", h.ListBrands)
	brands.POST("", h.CreateBrand)
	brands.GET("/:id", h.GetBrand)
	brands.PATCH("/:id", h.UpdateBrand)
	brands.DELETE("/:id", h.DeleteBrand)
	brands.GET("/:id/export", h.ExportBrand)

	// User and allocation management
	users := api.Group("/users")
	users.GET("", h.ListUsers)
	users.GET("/:id", h.GetUser)
	users.GET("/me/brands", h.MyBrands)

	allocations := api.Group("/allocations")
	allocations.POST("", h.Allocate)
	allocations.GET("/:user_id", h.UserAllocations)
	allocations.DELETE("/:user_id/:brand_id", h.Deallocate)

	// Reports and exports
	reports := api.Group("/reports")
	reports.GET("/login-logs", h.LoginLogs)
	reports.GET("/daily-summary", h.DailySummary)
	reports.GET("/brand-summary", h.BrandSummary)
	reports.GET("/export", h.ExportAll)
	reports.GET("/export/mine", h.ExportMine)

	// Get server port from configuration
	port := cfg.Server.Port

	// Start server
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libtrack/internal/adapters/http/middleware"
	"libtrack/internal/adapters/http/routes"
	"libtrack/internal/adapters/persistence/models"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/config"
	"libtrack/internal/core/services"
	"libtrack/internal/pkg/cache"

	"github.com/gofiber/fiber/v2"

	_ "libtrack/docs" // Swagger docs
)

// @title libtrack API
// @version 1.0
// @description Personal library loan tracker: syncs borrowed books from the circulation system, enriches them with ISBN metadata and keeps a permanent reading record.

// @contact.name API Support

// @license.name MIT

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Repositories
	bookRepo := repositories.NewBookRepository(db)
	plannedRepo := repositories.NewPlannedLoanRepository(db)
	actionLogRepo := repositories.NewActionLogRepository(db)

	// External clients
	libraryService := services.NewLibraryService(cfg.Library)
	metadataCache := cache.New(cfg.BookInfo.CacheTTL(), 10*time.Minute)
	bookInfoService := services.NewBookInfoService(cfg.BookInfo, metadataCache)
	notifier := services.NewNotificationService(cfg.LINE)

	// Core services. The scheduler and HTTP triggers share these instances.
	syncService := services.NewSyncService(
		libraryService,
		bookInfoService,
		bookRepo,
		plannedRepo,
		actionLogRepo,
		cfg.Sync.BatchSize,
	)
	renewalService := services.NewRenewalService(libraryService, bookRepo, actionLogRepo, cfg.Sync.RenewDaysAhead)
	authService := services.NewAuthService(cfg)

	// Scheduled nightly sync and morning reminder
	scheduler := services.NewSchedulerService(syncService, renewalService, bookRepo, notifier, cfg.Sync)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "libtrack API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, db, cfg, routes.Deps{
		SyncService:    syncService,
		RenewalService: renewalService,
		AuthService:    authService,
	})

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}

package routes

import (
	"time"

	"libtrack/internal/adapters/http/handlers"
	"libtrack/internal/adapters/http/middleware"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/config"
	"libtrack/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Deps carries the shared services the HTTP layer exposes. The sync and
// renewal services are built in main so the scheduler and the HTTP
// trigger share the same instances.
type Deps struct {
	SyncService    *services.SyncService
	RenewalService *services.RenewalService
	AuthService    *services.AuthService
}

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Deps) {
	// Initialize repositories
	bookRepo := repositories.NewBookRepository(db)
	noteRepo := repositories.NewNoteRepository(db)
	plannedRepo := repositories.NewPlannedLoanRepository(db)
	actionLogRepo := repositories.NewActionLogRepository(db)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(actionLogRepo)
	authHandler := handlers.NewAuthHandler(deps.AuthService, cfg)
	syncHandler := handlers.NewSyncHandler(deps.SyncService, deps.RenewalService, actionLogRepo)
	bookHandler := handlers.NewBookHandler(bookRepo)
	noteHandler := handlers.NewNoteHandler(noteRepo, bookRepo)
	plannedHandler := handlers.NewPlannedHandler(plannedRepo)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")

	// Auth routes (public, tightly rate limited)
	authRoutes := apiV1.Group("/auth")
	authRoutes.Use(middleware.NoCacheHeaders())
	authRoutes.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	authRoutes.Post("/refresh", authHandler.RefreshToken)
	authRoutes.Post("/logout", authHandler.Logout)

	// Sync routes
	syncRoutes := apiV1.Group("/sync")
	syncRoutes.Use(middleware.AuthMiddleware(cfg))
	syncRoutes.Use(middleware.NoCacheHeaders())
	syncRoutes.Post("/", middleware.SyncRateLimiter(), syncHandler.TriggerSync)
	syncRoutes.Post("/renew", middleware.SyncRateLimiter(), syncHandler.TriggerRenewals)
	syncRoutes.Get("/logs", syncHandler.ListLogs)

	// Book routes
	bookRoutes := apiV1.Group("/books")
	bookRoutes.Use(middleware.AuthMiddleware(cfg))
	bookRoutes.Get("/", middleware.PrivateCacheHeaders(30*time.Second), bookHandler.List)
	bookRoutes.Get("/:id", bookHandler.Get)
	bookRoutes.Patch("/:id/read-state", bookHandler.UpdateReadState)
	bookRoutes.Get("/:id/notes", noteHandler.ListByBook)
	bookRoutes.Post("/:id/notes", noteHandler.Create)

	// Note routes
	noteRoutes := apiV1.Group("/notes")
	noteRoutes.Use(middleware.AuthMiddleware(cfg))
	noteRoutes.Put("/:id", noteHandler.Update)
	noteRoutes.Delete("/:id", noteHandler.Delete)

	// Planned loan routes
	plannedRoutes := apiV1.Group("/planned")
	plannedRoutes.Use(middleware.AuthMiddleware(cfg))
	plannedRoutes.Get("/", plannedHandler.List)
	plannedRoutes.Post("/", plannedHandler.Create)
	plannedRoutes.Delete("/:biblioID", plannedHandler.Delete)
}

package handlers

import (
	"context"
	"time"

	"libtrack/internal/adapters/persistence/models"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/config"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports service liveness plus the outcome of the most
// recent reconciliation run, so a glance at /health answers "is the
// tracker up AND is it actually syncing".
type HealthHandler struct {
	actionLogRepo repositories.ActionLogRepository
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(actionLogRepo repositories.ActionLogRepository) *HealthHandler {
	return &HealthHandler{actionLogRepo: actionLogRepo}
}

// Root handles root endpoint
// @Summary Root endpoint
// @Description Returns API status
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "running",
		"message": "🚀 libtrack API v1.0 is running",
		"mode":    config.AppConfig.AppMode,
		"docs":    "/swagger/index.html",
	})
}

// HealthCheck handles health check
// @Summary Health check
// @Description Check database health and the last sync run outcome
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	dbStatus := "healthy"
	if err := config.HealthCheck(); err != nil {
		dbStatus = "unhealthy"
	}

	checks := fiber.Map{
		"database":  dbStatus,
		"last_sync": h.lastSync(c.Context()),
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"checks": checks,
	})
}

// lastSync finds the newest run-level SYNC entry in the action log.
// Run summaries carry no external id, which tells them apart from
// per-loan failure entries of the same action.
func (h *HealthHandler) lastSync(ctx context.Context) fiber.Map {
	entries, err := h.actionLogRepo.ListRecent(ctx, 100)
	if err != nil {
		return fiber.Map{"status": "unknown"}
	}

	for _, entry := range entries {
		if entry.Action == models.ActionSync && entry.ExternalID == "" {
			return fiber.Map{
				"status":  entry.Status,
				"ran_at":  entry.CreatedAt.Format(time.RFC3339),
				"message": entry.Message,
			}
		}
	}
	return fiber.Map{"status": "never"}
}

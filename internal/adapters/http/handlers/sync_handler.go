package handlers

import (
	"context"
	"log"
	"time"

	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/core/services"
	"libtrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler exposes the reconciliation and renewal runs over HTTP
type SyncHandler struct {
	syncService    *services.SyncService
	renewalService *services.RenewalService
	actionLogRepo  repositories.ActionLogRepository
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(
	syncService *services.SyncService,
	renewalService *services.RenewalService,
	actionLogRepo repositories.ActionLogRepository,
) *SyncHandler {
	return &SyncHandler{
		syncService:    syncService,
		renewalService: renewalService,
		actionLogRepo:  actionLogRepo,
	}
}

// TriggerSync runs one reconciliation pass on demand
// @Summary Trigger a sync run
// @Description Reconcile loans from the circulation system into the store
// @Tags Sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 502 {object} response.Response
// @Failure 503 {object} response.Response
// @Failure 504 {object} response.Response
// @Router /sync [post]
func (h *SyncHandler) TriggerSync(c *fiber.Ctx) error {
	// Detached from the request context: a closed connection must not
	// abort a half-finished reconciliation
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	summary, err := h.syncService.Reconcile(ctx)
	if err != nil {
		log.Printf("❌ Manual sync failed: %v", err)
		return response.SyncFailure(c, err)
	}

	return response.Success(c, "Sync completed", summary)
}

// TriggerRenewals runs the renewal pass on demand
// @Summary Renew loans due soon
// @Description Attempt renewal for every active loan inside the renewal window
// @Tags Sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /sync/renew [post]
func (h *SyncHandler) TriggerRenewals(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	results, err := h.renewalService.RenewDueSoon(ctx)
	if err != nil {
		log.Printf("❌ Manual renewal pass failed: %v", err)
		return response.SyncFailure(c, err)
	}

	return response.Success(c, "Renewal pass completed", fiber.Map{
		"results": results,
	})
}

// ListLogs returns recent sync and renewal log entries
// @Summary List action logs
// @Description Recent sync and renewal activity, newest first
// @Tags Sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max entries (default 50)"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /sync/logs [get]
func (h *SyncHandler) ListLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	entries, err := h.actionLogRepo.ListRecent(c.Context(), limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list action logs")
	}

	return response.Success(c, "Action logs retrieved", fiber.Map{
		"logs": entries,
	})
}

package handlers

import (
	"strings"

	"libtrack/internal/adapters/persistence/models"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PlannedHandler handles the borrow-later list
type PlannedHandler struct {
	plannedRepo repositories.PlannedLoanRepository
}

// NewPlannedHandler creates a new planned loan handler
func NewPlannedHandler(plannedRepo repositories.PlannedLoanRepository) *PlannedHandler {
	return &PlannedHandler{plannedRepo: plannedRepo}
}

// PlannedRequest represents a borrow-later entry
type PlannedRequest struct {
	BiblioID int64  `json:"biblio_id"`
	Title    string `json:"title"`
	ISBN     string `json:"isbn"`
}

// Create adds a title to the borrow-later list
// @Summary Add a planned loan
// @Description Add a title to the borrow-later list
// @Tags Planned
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body PlannedRequest true "Planned loan"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /planned [post]
func (h *PlannedHandler) Create(c *fiber.Ctx) error {
	var req PlannedRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.BiblioID < 1 {
		return response.BadRequest(c, "biblio_id is required")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return response.BadRequest(c, "Title is required")
	}

	planned := &models.PlannedLoan{
		BiblioID: req.BiblioID,
		Title:    req.Title,
		ISBN:     strings.TrimSpace(req.ISBN),
	}
	if err := h.plannedRepo.Create(c.Context(), planned); err != nil {
		return response.InternalServerError(c, "Failed to create planned loan")
	}

	return response.Created(c, "Planned loan created", planned)
}

// List returns the borrow-later list
// @Summary List planned loans
// @Description List the borrow-later titles not yet borrowed
// @Tags Planned
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /planned [get]
func (h *PlannedHandler) List(c *fiber.Ctx) error {
	planned, err := h.plannedRepo.List(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to list planned loans")
	}

	return response.Success(c, "Planned loans retrieved", fiber.Map{
		"planned": planned,
	})
}

// Delete removes a title from the borrow-later list by biblio id
// @Summary Remove a planned loan
// @Description Remove a borrow-later entry by biblio id
// @Tags Planned
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param biblioID path int true "Biblio ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /planned/{biblioID} [delete]
func (h *PlannedHandler) Delete(c *fiber.Ctx) error {
	biblioID, err := c.ParamsInt("biblioID")
	if err != nil || biblioID < 1 {
		return response.BadRequest(c, "Invalid biblio id")
	}

	affected, err := h.plannedRepo.DeleteByBiblioIDs(c.Context(), []int64{int64(biblioID)})
	if err != nil {
		return response.InternalServerError(c, "Failed to delete planned loan")
	}
	if affected == 0 {
		return response.NotFound(c, "Planned loan not found")
	}

	return response.Success(c, "Planned loan deleted", nil)
}

package handlers

import (
	"errors"

	"libtrack/internal/adapters/persistence/models"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/core/domain"
	"libtrack/internal/pkg/pagination"
	"libtrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// BookHandler handles book record endpoints
type BookHandler struct {
	bookRepo repositories.BookRepository
}

// NewBookHandler creates a new book handler
func NewBookHandler(bookRepo repositories.BookRepository) *BookHandler {
	return &BookHandler{bookRepo: bookRepo}
}

// UpdateReadStateRequest represents a read state change
type UpdateReadStateRequest struct {
	ReadState string `json:"read_state"`
}

// List returns the patron's book records
// @Summary List books
// @Description List book records, filtered by loan status
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter: active, returned or all (default all)"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /books [get]
func (h *BookHandler) List(c *fiber.Ctx) error {
	status := c.Query("status", "all")
	if status != "active" && status != "returned" && status != "all" {
		return response.BadRequest(c, "status must be active, returned or all")
	}

	params := pagination.GetParams(c)

	records, total, err := h.bookRepo.List(c.Context(), status, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list books")
	}

	items := make([]*models.BookRecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, record.ToResponse())
	}

	return response.Success(c, "Books retrieved", pagination.NewResponse(items, params, total))
}

// Get returns one book record with its notes
// @Summary Get a book
// @Description Get one book record by id, including notes
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [get]
func (h *BookHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid book id")
	}

	record, err := h.bookRepo.GetByID(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Book not found")
		}
		return response.InternalServerError(c, "Failed to get book")
	}

	return response.Success(c, "Book retrieved", record.ToResponse())
}

// UpdateReadState sets the reading progress for a book
// @Summary Update read state
// @Description Set the reading progress (UNREAD, READING, FINISHED)
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body UpdateReadStateRequest true "New read state"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id}/read-state [patch]
func (h *BookHandler) UpdateReadState(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid book id")
	}

	var req UpdateReadStateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	switch domain.ReadState(req.ReadState) {
	case domain.ReadStateUnread, domain.ReadStateReading, domain.ReadStateFinished:
	default:
		return response.BadRequest(c, "read_state must be UNREAD, READING or FINISHED")
	}

	if err := h.bookRepo.UpdateReadState(c.Context(), uint(id), req.ReadState); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Book not found")
		}
		return response.InternalServerError(c, "Failed to update read state")
	}

	return response.Success(c, "Read state updated", fiber.Map{
		"id":         id,
		"read_state": req.ReadState,
	})
}

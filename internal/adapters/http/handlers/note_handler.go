package handlers

import (
	"errors"
	"strings"

	"libtrack/internal/adapters/persistence/models"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// NoteHandler handles per-book note endpoints
type NoteHandler struct {
	noteRepo repositories.NoteRepository
	bookRepo repositories.BookRepository
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(noteRepo repositories.NoteRepository, bookRepo repositories.BookRepository) *NoteHandler {
	return &NoteHandler{
		noteRepo: noteRepo,
		bookRepo: bookRepo,
	}
}

// NoteRequest represents a note create or update body
type NoteRequest struct {
	Content string `json:"content"`
}

// Create adds a note to a book
// @Summary Create a note
// @Description Attach a note to a book record
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body NoteRequest true "Note content"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id}/notes [post]
func (h *NoteHandler) Create(c *fiber.Ctx) error {
	bookID, err := c.ParamsInt("id")
	if err != nil || bookID < 1 {
		return response.BadRequest(c, "Invalid book id")
	}

	var req NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return response.BadRequest(c, "Content is required")
	}

	// Notes only attach to known books
	if _, err := h.bookRepo.GetByID(c.Context(), uint(bookID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Book not found")
		}
		return response.InternalServerError(c, "Failed to look up book")
	}

	note := &models.Note{
		BookID:  uint(bookID),
		Content: req.Content,
	}
	if err := h.noteRepo.Create(c.Context(), note); err != nil {
		return response.InternalServerError(c, "Failed to create note")
	}

	return response.Created(c, "Note created", note)
}

// ListByBook returns all notes for a book
// @Summary List notes
// @Description List all notes attached to a book record
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id}/notes [get]
func (h *NoteHandler) ListByBook(c *fiber.Ctx) error {
	bookID, err := c.ParamsInt("id")
	if err != nil || bookID < 1 {
		return response.BadRequest(c, "Invalid book id")
	}

	notes, err := h.noteRepo.ListByBookID(c.Context(), uint(bookID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list notes")
	}

	return response.Success(c, "Notes retrieved", fiber.Map{
		"notes": notes,
	})
}

// Update rewrites a note's content
// @Summary Update a note
// @Description Replace the content of a note
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Param body body NoteRequest true "New content"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /notes/{id} [put]
func (h *NoteHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid note id")
	}

	var req NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return response.BadRequest(c, "Content is required")
	}

	note, err := h.noteRepo.GetByID(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Note not found")
		}
		return response.InternalServerError(c, "Failed to get note")
	}

	note.Content = req.Content
	if err := h.noteRepo.Update(c.Context(), note); err != nil {
		return response.InternalServerError(c, "Failed to update note")
	}

	return response.Success(c, "Note updated", note)
}

// Delete removes a note
// @Summary Delete a note
// @Description Delete a note by id
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /notes/{id} [delete]
func (h *NoteHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid note id")
	}

	if err := h.noteRepo.Delete(c.Context(), uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Note not found")
		}
		return response.InternalServerError(c, "Failed to delete note")
	}

	return response.Success(c, "Note deleted", nil)
}

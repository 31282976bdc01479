package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/booklog/booklog/internal/handler/dto"
	"github.com/booklog/booklog/internal/repository"
	"github.com/booklog/booklog/internal/service"
)

// LogHandler handles HTTP requests for log entry operations.
type LogHandler struct {
	svc    *service.LogService
	logger *slog.Logger
}

// NewLogHandler creates a new LogHandler.
func NewLogHandler(svc *service.LogService, logger *slog.Logger) *LogHandler {
	return &LogHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /posts/{ownerID}/{sortKey}.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	sortKey := chi.URLParam(r, "sortKey")

	entries, err := h.svc.ListByOwner(r.Context(), ownerID, sortKey)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, emptyAsList(entries))
}

// Get handles GET /posts/{id}.
func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// Stats handles GET /stat/{ownerID}.
func (h *LogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	stats, err := h.svc.Stats(r.Context(), ownerID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToStatResponse(stats))
}

// Search handles POST /search/{ownerID}.
func (h *LogHandler) Search(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	var req dto.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	entries, err := h.svc.Search(r.Context(), ownerID, req.Keyword)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, emptyAsList(entries))
}

// Create handles POST /posts/{ownerID}.
func (h *LogHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	var req dto.LogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	entry, err := h.svc.Create(r.Context(), ownerID, toInput(req))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("log_created",
		"log_id", entry.ID,
		"owner_id", entry.OwnerID,
	)

	writeJSON(w, http.StatusCreated, entry)
}

// Replace handles PUT /posts/{id}.
func (h *LogHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.LogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	entry, err := h.svc.Replace(r.Context(), id, toInput(req))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("log_replaced", "log_id", entry.ID)

	writeJSON(w, http.StatusOK, entry)
}

// Delete handles DELETE /posts/{id}.
func (h *LogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("log_deleted", "log_id", id)

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Post deleted"})
}

// toInput converts a request body to a service input.
func toInput(req dto.LogRequest) service.LogInput {
	return service.LogInput{
		Title:  req.Title,
		Author: req.Author,
		ISBN:   string(req.ISBN),
		Rating: string(req.Rating),
		Review: req.Review,
		Notes:  req.Notes,
	}
}

// emptyAsList keeps empty results as [] instead of null on the wire.
func emptyAsList[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// handleServiceError maps service errors to HTTP responses.
func (h *LogHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrLogNotFound):
		h.writeError(w, http.StatusNotFound, "LOG_NOT_FOUND", "Post not found")
	case errors.Is(err, repository.ErrDuplicateTitle):
		h.writeError(w, http.StatusConflict, "DUPLICATE_TITLE", "This title has already been added. Try again.")
	case service.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *LogHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

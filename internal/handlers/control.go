package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calebkish/control-generator-sub000/internal/models"
	"github.com/calebkish/control-generator-sub000/internal/repository"
)

type controlRepository interface {
	Create(ctx context.Context, c *models.Control) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Control, error)
	List(ctx context.Context) ([]*models.Control, error)
	Update(ctx context.Context, c *models.Control) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type conversationRepository interface {
	EnsureForControl(ctx context.Context, controlID uuid.UUID, topic, systemPrompt string) (*models.Conversation, error)
}

type ControlHandler struct {
	controlRepo controlRepository
	convRepo    conversationRepository
}

func NewControlHandler(controlRepo controlRepository, convRepo conversationRepository) *ControlHandler {
	return &ControlHandler{controlRepo: controlRepo, convRepo: convRepo}
}

func (h *ControlHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Name is required", r))
		return
	}

	control := &models.Control{Name: req.Name, Description: req.Description}
	if err := h.controlRepo.Create(r.Context(), control); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create control", r))
		return
	}

	writeJSON(w, http.StatusCreated, control)
}

func (h *ControlHandler) List(w http.ResponseWriter, r *http.Request) {
	controls, err := h.controlRepo.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list controls", r))
		return
	}
	if controls == nil {
		controls = []*models.Control{}
	}
	writeJSON(w, http.StatusOK, controls)
}

func (h *ControlHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid control ID", r))
		return
	}

	control, err := h.controlRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Control not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load control", r))
		return
	}

	writeJSON(w, http.StatusOK, control)
}

func (h *ControlHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid control ID", r))
		return
	}

	var req models.ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Name is required", r))
		return
	}

	control := &models.Control{ID: id, Name: req.Name, Description: req.Description}
	if err := h.controlRepo.Update(r.Context(), control); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Control not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update control", r))
		return
	}

	writeJSON(w, http.StatusOK, control)
}

// Delete removes a control and, through the schema cascade, every
// conversation and turn hanging off it.
func (h *ControlHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid control ID", r))
		return
	}

	if err := h.controlRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Control not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete control", r))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EnsureConversation returns the control's conversation for a chat topic,
// creating it on first access. The optional system prompt in the body only
// applies at creation time.
func (h *ControlHandler) EnsureConversation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid control ID", r))
		return
	}

	topic := chi.URLParam(r, "topic")
	if topic == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Topic is required", r))
		return
	}

	var req struct {
		SystemPrompt string `json:"system_prompt"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
	}

	if _, err := h.controlRepo.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Control not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load control", r))
		return
	}

	conv, err := h.convRepo.EnsureForControl(r.Context(), id, topic, req.SystemPrompt)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to open conversation", r))
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

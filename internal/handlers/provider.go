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

type providerConfigRepository interface {
	Create(ctx context.Context, p *models.ProviderConfig) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error)
	List(ctx context.Context) ([]*models.ProviderConfig, error)
	Update(ctx context.Context, p *models.ProviderConfig) error
	Delete(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) error
}

type ProviderHandler struct {
	providerRepo providerConfigRepository
}

func NewProviderHandler(providerRepo providerConfigRepository) *ProviderHandler {
	return &ProviderHandler{providerRepo: providerRepo}
}

func validateProviderRequest(req models.ProviderConfigRequest, updating bool) map[string]string {
	fields := make(map[string]string)

	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "Name is required"
	}

	switch req.Kind {
	case models.ProviderKindLocal:
		if req.FilePath == "" {
			fields["file_path"] = "A model file path is required for local providers"
		}
	case models.ProviderKindOpenAI:
		if req.APIKey == "" && !updating {
			fields["api_key"] = "An API key is required"
		}
		if req.Model == "" {
			fields["model"] = "A model name is required"
		}
	case models.ProviderKindGemini:
		if req.APIKey == "" && !updating {
			fields["api_key"] = "An API key is required"
		}
		if req.Model == "" {
			fields["model"] = "A model name is required"
		}
	default:
		fields["kind"] = "Kind must be one of: local, openai_compatible, gemini"
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.providerRepo.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list provider configs", r))
		return
	}
	if configs == nil {
		configs = []*models.ProviderConfig{}
	}
	writeJSON(w, http.StatusOK, configs)
}

func (h *ProviderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ProviderConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if fields := validateProviderRequest(req, false); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	cfg := &models.ProviderConfig{
		Name:     req.Name,
		Kind:     req.Kind,
		FilePath: req.FilePath,
		Endpoint: req.Endpoint,
		APIKey:   req.APIKey,
		Model:    req.Model,
	}
	if err := h.providerRepo.Create(r.Context(), cfg); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create provider config", r))
		return
	}

	writeJSON(w, http.StatusCreated, cfg)
}

func (h *ProviderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid provider config ID", r))
		return
	}

	var req models.ProviderConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	// An omitted API key keeps the stored one, so edits never require
	// re-entering the secret.
	if fields := validateProviderRequest(req, true); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	cfg := &models.ProviderConfig{
		ID:       id,
		Name:     req.Name,
		Kind:     req.Kind,
		FilePath: req.FilePath,
		Endpoint: req.Endpoint,
		APIKey:   req.APIKey,
		Model:    req.Model,
	}
	if err := h.providerRepo.Update(r.Context(), cfg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Provider config not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update provider config", r))
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func (h *ProviderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid provider config ID", r))
		return
	}

	if err := h.providerRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Provider config not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete provider config", r))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Activate marks one config as the active provider; every other config is
// deactivated in the same swap.
func (h *ProviderHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid provider config ID", r))
		return
	}

	if err := h.providerRepo.Activate(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Provider config not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to activate provider config", r))
		return
	}

	cfg, err := h.providerRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load provider config", r))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

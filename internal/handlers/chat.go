package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calebkish/control-generator-sub000/internal/llm"
	"github.com/calebkish/control-generator-sub000/internal/models"
	"github.com/calebkish/control-generator-sub000/internal/services"
	"github.com/calebkish/control-generator-sub000/internal/stream"
)

type chatService interface {
	Run(ctx context.Context, req services.StreamRequest, sink stream.Sink) error
	ClearHistory(ctx context.Context, conversationID uuid.UUID) error
}

type ChatHandler struct {
	chat chatService
}

func NewChatHandler(chat chatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Prompt streams a model completion for one user prompt. Failures detected
// before the stream opens are plain JSON errors; once bytes have flowed, a
// mid-stream failure tears the connection down and a commit failure is
// reported in the response trailer after an otherwise clean stream.
func (h *ChatHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}

	var req models.PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.UserPrompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "user_prompt is required", r))
		return
	}

	sink, err := stream.NewHTTPSink(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("STREAMING_UNSUPPORTED", "Connection does not support streaming", r))
		return
	}

	err = h.chat.Run(r.Context(), services.StreamRequest{
		ConversationID:       conversationID,
		UserPrompt:           req.UserPrompt,
		SystemPromptOverride: req.SystemPrompt,
		ProviderConfigID:     req.ProviderConfigID,
	}, sink)
	if err == nil {
		return
	}

	if !sink.Started() {
		status, code := classifyChatError(err)
		writeJSON(w, status, errorResp(code, err.Error(), r))
		return
	}

	var commitErr *services.CommitError
	if errors.As(err, &commitErr) {
		sink.FinishWithError("COMMIT_FAILED")
		return
	}
	_, code := classifyChatError(err)
	sink.Abort(code)
}

func classifyChatError(err error) (status int, code string) {
	var reqErr *llm.RequestError
	var streamErr *llm.StreamError
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, services.ErrNoActiveProvider):
		return http.StatusPreconditionFailed, "NO_ACTIVE_PROVIDER"
	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusBadGateway, "PROVIDER_UNAVAILABLE"
	case errors.As(err, &reqErr):
		return http.StatusBadGateway, "PROVIDER_REQUEST_FAILED"
	case errors.As(err, &streamErr):
		return http.StatusBadGateway, "PROVIDER_STREAM_INTERRUPTED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// ClearHistory truncates a conversation's history. The second clear in a row
// is a no-op that still succeeds.
func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}

	if err := h.chat.ClearHistory(r.Context(), conversationID); err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Conversation not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to clear history", r))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/assistant"
	"github.com/InfiniteCod3/chatplugins/internal/middleware"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

// Assistant runs AI exchanges and manages stored history.
type Assistant interface {
	Ask(ctx context.Context, channelID, prompt string) (*model.AskResponse, error)
	History(channelID string) []model.ConversationEntry
	Reset(ctx context.Context, channelID string) error
}

// ConversationHandler handles AI conversation endpoints.
type ConversationHandler struct {
	assistant Assistant
	logger    *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(a Assistant, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		assistant: a,
		logger:    log,
	}
}

// Ask handles POST /api/v1/channels/{id}/ai
func (h *ConversationHandler) Ask(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")
	if err := middleware.ValidateChannelID(channelID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidatePrompt(req.Prompt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.assistant.Ask(r.Context(), channelID, req.Prompt)
	switch {
	case errors.Is(err, assistant.ErrConfigurationMissing):
		writeError(w, http.StatusServiceUnavailable, "AI provider is not configured")
		return
	case errors.Is(err, assistant.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("AI request failed",
			zap.String("channel_id", channelID),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "AI request failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/channels/{id}/conversation
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")
	if err := middleware.ValidateChannelID(channelID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.ConversationResponse{
		ChannelID: channelID,
		Entries:   h.assistant.History(channelID),
	})
}

// Clear handles DELETE /api/v1/channels/{id}/conversation
func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")
	if err := middleware.ValidateChannelID(channelID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The in-memory history is already gone when persistence fails.
	if err := h.assistant.Reset(r.Context(), channelID); err != nil {
		h.logger.Warn("conversation cleared but not persisted", zap.String("channel_id", channelID), zap.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}

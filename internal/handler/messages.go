package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/InfiniteCod3/chatplugins/internal/middleware"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

const (
	defaultMessageCount = 50
	maxMessageCount     = 1000
)

// Fetcher retrieves recent channel history.
type Fetcher interface {
	Fetch(ctx context.Context, channelID string, n int) []model.Message
}

// MessageHandler handles message endpoints.
type MessageHandler struct {
	fetcher Fetcher
	ready   func() bool
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler. ready reports whether the
// remote API credential is configured.
func NewMessageHandler(f Fetcher, ready func() bool, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		fetcher: f,
		ready:   ready,
		logger:  log,
	}
}

// List handles GET /api/v1/channels/{id}/messages?count=N
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")
	if err := middleware.ValidateChannelID(channelID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := middleware.ParseCount(r.URL.Query().Get("count"), defaultMessageCount, maxMessageCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.ready != nil && !h.ready() {
		writeError(w, http.StatusServiceUnavailable, "message API token is not configured")
		return
	}

	msgs := h.fetcher.Fetch(r.Context(), channelID, count)
	writeJSON(w, http.StatusOK, model.ListMessagesResponse{
		ChannelID: channelID,
		Messages:  msgs,
		Count:     len(msgs),
	})
}

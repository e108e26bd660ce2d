package handler

import (
	"net/http"
	"time"

	"github.com/InfiniteCod3/chatplugins/internal/middleware"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

// Decider applies notification suppression rules.
type Decider interface {
	Decide(msg model.Message, mentioned bool, now time.Time) model.NotificationDecision
}

// MessageSink records messages observed by the host.
type MessageSink interface {
	Put(channelID string, msgs ...model.Message)
}

// NotificationHandler answers suppression queries from the host.
type NotificationHandler struct {
	decider Decider
	sink    MessageSink
	now     func() time.Time
	logger  *logger.Logger
}

// NewNotificationHandler creates a new notification handler. sink may be nil.
func NewNotificationHandler(d Decider, sink MessageSink, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{decider: d, sink: sink, now: time.Now, logger: log}
}

// Decide handles POST /api/v1/notifications/decide
func (h *NotificationHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var ev model.MessageCreatedEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.Message.ID == "" {
		writeError(w, http.StatusBadRequest, "message id is required")
		return
	}
	if err := middleware.ValidateChannelID(ev.Message.ChannelID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.sink != nil {
		h.sink.Put(ev.Message.ChannelID, ev.Message)
	}

	at := ev.ReceivedAt
	if at.IsZero() {
		at = h.now()
	}
	writeJSON(w, http.StatusOK, h.decider.Decide(ev.Message, ev.Mentioned, at))
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/discord"
	"github.com/InfiniteCod3/chatplugins/internal/export"
	"github.com/InfiniteCod3/chatplugins/internal/middleware"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

// Exporter builds export files.
type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
	Notes(ctx context.Context) (*export.Result, error)
}

// ExportHandler handles export downloads.
type ExportHandler struct {
	exporter Exporter
	logger   *logger.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(e Exporter, log *logger.Logger) *ExportHandler {
	return &ExportHandler{exporter: e, logger: log}
}

// Messages handles GET /api/v1/channels/{id}/export?count=N&after=&before=
func (h *ExportHandler) Messages(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")
	if err := middleware.ValidateChannelID(channelID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	count, err := middleware.ParseCount(q.Get("count"), export.DefaultCount, export.MaxCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	after, err := parseTime(q.Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "after must be RFC 3339")
		return
	}
	before, err := parseTime(q.Get("before"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "before must be RFC 3339")
		return
	}

	res, err := h.exporter.Export(r.Context(), export.Request{
		ChannelID: channelID,
		Count:     count,
		After:     after,
		Before:    before,
	})
	if err != nil {
		h.writeExportError(w, err)
		return
	}
	writeAttachment(w, res.Filename, res.Text)
}

// Notes handles GET /api/v1/notes/export
func (h *ExportHandler) Notes(w http.ResponseWriter, r *http.Request) {
	res, err := h.exporter.Notes(r.Context())
	if err != nil {
		h.writeExportError(w, err)
		return
	}
	writeAttachment(w, res.Filename, res.Text)
}

func (h *ExportHandler) writeExportError(w http.ResponseWriter, err error) {
	var statusErr *discord.StatusError
	switch {
	case errors.Is(err, discord.ErrMissingToken):
		writeError(w, http.StatusServiceUnavailable, "message API token is not configured")
	case errors.Is(err, export.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &statusErr):
		h.logger.Warn("export upstream failure", zap.Int("upstream_status", statusErr.StatusCode))
		writeError(w, http.StatusBadGateway, "message API request failed")
	default:
		h.logger.Error("export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

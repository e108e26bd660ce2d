// Package notify delivers user-facing notices and decides which incoming
// messages should raise a desktop notification.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

// Notifier reports a notice to the user.
type Notifier interface {
	Notify(ctx context.Context, level model.NoticeLevel, title, body string)
}

// Publisher sends a notice somewhere outside the process.
type Publisher interface {
	PublishNotice(ctx context.Context, n model.Notice) error
}

// Service logs every notice and forwards it to the optional publisher.
type Service struct {
	logger    *logger.Logger
	publisher Publisher
	now       func() time.Time
}

// NewService creates a notifier. publisher may be nil.
func NewService(log *logger.Logger, publisher Publisher) *Service {
	return &Service{logger: log, publisher: publisher, now: time.Now}
}

// Notify implements Notifier.
func (s *Service) Notify(ctx context.Context, level model.NoticeLevel, title, body string) {
	n := model.Notice{
		ID:        uuid.New().String(),
		Level:     level,
		Title:     title,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}

	fields := []zap.Field{
		zap.String("notice_id", n.ID),
		zap.String("title", title),
		zap.String("body", body),
	}
	switch level {
	case model.NoticeError:
		s.logger.Error("notice", fields...)
	case model.NoticeWarning:
		s.logger.Warn("notice", fields...)
	default:
		s.logger.Info("notice", fields...)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotice(ctx, n); err != nil {
		s.logger.Warn("failed to publish notice", zap.String("notice_id", n.ID), zap.Error(err))
	}
}

// Recorder keeps notices in memory for later inspection.
type Recorder struct {
	mu      sync.Mutex
	notices []model.Notice
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, level model.NoticeLevel, title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, model.Notice{Level: level, Title: title, Body: body, CreatedAt: time.Now()})
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []model.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notice(nil), r.notices...)
}

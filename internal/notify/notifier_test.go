package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

type stubPublisher struct {
	got []model.Notice
	err error
}

func (p *stubPublisher) PublishNotice(_ context.Context, n model.Notice) error {
	p.got = append(p.got, n)
	return p.err
}

func TestService_PublishesNotice(t *testing.T) {
	pub := &stubPublisher{}
	svc := NewService(logger.NewNop(), pub)

	svc.Notify(context.Background(), model.NoticeError, "Storage error", "disk full")

	if len(pub.got) != 1 {
		t.Fatalf("expected one published notice, got %d", len(pub.got))
	}
	n := pub.got[0]
	if n.ID == "" || n.CreatedAt.IsZero() {
		t.Fatalf("notice missing id or timestamp: %+v", n)
	}
	if n.Level != model.NoticeError || n.Title != "Storage error" || n.Body != "disk full" {
		t.Fatalf("unexpected notice: %+v", n)
	}
}

func TestService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &stubPublisher{err: errors.New("no responders")}
	svc := NewService(logger.NewNop(), pub)
	svc.Notify(context.Background(), model.NoticeWarning, "t", "b")
	if len(pub.got) != 1 {
		t.Fatal("expected publish attempt")
	}
}

func TestService_WithoutPublisher(t *testing.T) {
	NewService(logger.NewNop(), nil).Notify(context.Background(), model.NoticeInfo, "t", "b")
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Notify(context.Background(), model.NoticeInfo, "a", "b")
	got := r.Notices()
	if len(got) != 1 || got[0].Title != "a" {
		t.Fatalf("unexpected notices: %+v", got)
	}
}

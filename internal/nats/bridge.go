package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

// Subjects used by the plugins.
const (
	SubjectMessageCreated = "chat.messages.created"
	SubjectNotifications  = "chat.notifications"
	SubjectNotices        = "plugins.notices"
)

// Decider applies notification suppression rules.
type Decider interface {
	Decide(msg model.Message, mentioned bool, now time.Time) model.NotificationDecision
}

// MessageSink receives every observed message.
type MessageSink interface {
	Put(channelID string, msgs ...model.Message)
}

// NotificationEvent is republished for messages that should notify.
type NotificationEvent struct {
	Decision model.NotificationDecision `json:"decision"`
	Message  model.Message              `json:"message"`
}

type publishFunc func(subject string, data []byte) error

// Bridge consumes host message events, caches the messages and republishes
// the ones that pass the suppression rules.
type Bridge struct {
	decider Decider
	sink    MessageSink
	now     func() time.Time
	publish publishFunc
	conn    *nats.Conn
	sub     *nats.Subscription
	logger  *logger.Logger
}

// NewBridge creates a bridge on c. Call Start to subscribe.
func NewBridge(c *Client, decider Decider, sink MessageSink, log *logger.Logger) *Bridge {
	b := newBridge(c.Conn().Publish, decider, sink, log)
	b.conn = c.Conn()
	return b
}

func newBridge(publish publishFunc, decider Decider, sink MessageSink, log *logger.Logger) *Bridge {
	return &Bridge{
		decider: decider,
		sink:    sink,
		now:     time.Now,
		publish: publish,
		logger:  log.Named("bridge"),
	}
}

// Start subscribes to message events.
func (b *Bridge) Start() error {
	sub, err := b.conn.Subscribe(SubjectMessageCreated, b.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectMessageCreated, err)
	}
	b.sub = sub
	b.logger.Info("notification bridge started", zap.String("subject", SubjectMessageCreated))
	return nil
}

// Stop drains the subscription.
func (b *Bridge) Stop() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Drain()
}

func (b *Bridge) handle(msg *nats.Msg) {
	decision, err := b.process(msg.Data)
	if err != nil {
		b.logger.Warn("dropping malformed message event", zap.Error(err))
		return
	}
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(decision)
	if err != nil {
		return
	}
	if err := msg.Respond(data); err != nil {
		b.logger.Warn("failed to answer decision request", zap.Error(err))
	}
}

// process decodes one event, records the message and publishes it when it
// should notify.
func (b *Bridge) process(data []byte) (model.NotificationDecision, error) {
	var ev model.MessageCreatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.NotificationDecision{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if ev.Message.ID == "" || ev.Message.ChannelID == "" {
		return model.NotificationDecision{}, fmt.Errorf("event without message or channel id")
	}

	if b.sink != nil {
		b.sink.Put(ev.Message.ChannelID, ev.Message)
	}

	at := ev.ReceivedAt
	if at.IsZero() {
		at = b.now()
	}
	decision := b.decider.Decide(ev.Message, ev.Mentioned, at)
	if decision.Suppress {
		b.logger.Debug("notification suppressed",
			zap.String("message_id", decision.MessageID),
			zap.String("reason", decision.Reason))
		return decision, nil
	}

	out, err := json.Marshal(NotificationEvent{Decision: decision, Message: ev.Message})
	if err != nil {
		return decision, fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := b.publish(SubjectNotifications, out); err != nil {
		b.logger.Error("failed to publish notification", zap.String("message_id", decision.MessageID), zap.Error(err))
	}
	return decision, nil
}

// NoticePublisher publishes user-facing notices.
type NoticePublisher struct {
	publish publishFunc
}

// NewNoticePublisher publishes notices on c.
func NewNoticePublisher(c *Client) *NoticePublisher {
	return &NoticePublisher{publish: c.Conn().Publish}
}

// PublishNotice sends n on SubjectNotices.
func (p *NoticePublisher) PublishNotice(_ context.Context, n model.Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}
	return p.publish(SubjectNotices, data)
}

package model

import (
	"time"
)

// NoticeLevel is the severity of a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing report, the daemon's equivalent of a toast.
type Notice struct {
	ID        string      `json:"id"`
	Level     NoticeLevel `json:"level"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
}

// MessageCreatedEvent is published by the host whenever a message arrives.
type MessageCreatedEvent struct {
	Message    Message   `json:"message"`
	Mentioned  bool      `json:"mentioned,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// NotificationDecision is the outcome of the suppression rules for one message.
type NotificationDecision struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Suppress  bool   `json:"suppress"`
	Reason    string `json:"reason,omitempty"`
}

// Package model defines data structures shared by the chat plugins.
package model

import (
	"time"
)

// Role represents the role of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ConversationEntry is one stored turn of an AI conversation.
type ConversationEntry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationData maps a channel ID to its entries in insertion order.
type ConversationData map[string][]ConversationEntry

// Clone returns a deep copy of d.
func (d ConversationData) Clone() ConversationData {
	out := make(ConversationData, len(d))
	for channelID, entries := range d {
		cp := make([]ConversationEntry, len(entries))
		copy(cp, entries)
		out[channelID] = cp
	}
	return out
}

// AskRequest is the request body for an AI exchange.
type AskRequest struct {
	Prompt string `json:"prompt"`
}

// AskResponse is the response body for an AI exchange.
type AskResponse struct {
	ChannelID string `json:"channel_id"`
	Response  string `json:"response"`
	Model     string `json:"model,omitempty"`
}

// ConversationResponse lists the stored entries of a channel.
type ConversationResponse struct {
	ChannelID string              `json:"channel_id"`
	Entries   []ConversationEntry `json:"entries"`
}

// ListMessagesResponse is the response for a paginated history fetch.
type ListMessagesResponse struct {
	ChannelID string    `json:"channel_id"`
	Messages  []Message `json:"messages"`
	Count     int       `json:"count"`
}

package model

import (
	"sort"
	"time"
)

// Message is a chat message as returned by the remote message API.
// It is read-only: nothing in this module mutates a fetched message.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	GuildID     string       `json:"guild_id,omitempty"`
	Author      *User        `json:"author,omitempty"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Embeds      []Embed      `json:"embeds,omitempty"`

	// The host emits reply references in several shapes depending on where the
	// message came from. Use format.ReplyReference instead of reading these.
	ReferencedMessage     *Message          `json:"referenced_message,omitempty"`
	MessageReference      *MessageReference `json:"message_reference,omitempty"`
	MessageReferenceCamel *MessageReference `json:"messageReference,omitempty"`
}

// User is the author of a message.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Embed is a rich embed attached to a message.
type Embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// MessageReference points at the parent of a reply. The camel-case tags cover
// payloads produced by the host's own serializer.
type MessageReference struct {
	MessageID      string `json:"message_id,omitempty"`
	ChannelID      string `json:"channel_id,omitempty"`
	GuildID        string `json:"guild_id,omitempty"`
	MessageIDCamel string `json:"messageId,omitempty"`
	ChannelIDCamel string `json:"channelId,omitempty"`
}

// Relationship is an entry of the current user's relationship list.
type Relationship struct {
	ID   string           `json:"id"`
	Type RelationshipType `json:"type"`
	User User             `json:"user"`
}

// RelationshipType classifies a relationship.
type RelationshipType int

const (
	RelationshipFriend          RelationshipType = 1
	RelationshipBlocked         RelationshipType = 2
	RelationshipIncomingRequest RelationshipType = 3
	RelationshipOutgoingRequest RelationshipType = 4
)

// CompareIDs orders two snowflake IDs numerically without parsing them.
// Non-numeric IDs fall back to plain string order.
func CompareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortChronological sorts msgs oldest first by timestamp, breaking ties by ID.
// The sort is stable so equal messages keep their relative order.
func SortChronological(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		}
		return CompareIDs(msgs[i].ID, msgs[j].ID) < 0
	})
}

// DisplayName returns the name shown for u, preferring the global name.
func (u *User) DisplayName() string {
	if u == nil {
		return "Unknown User"
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

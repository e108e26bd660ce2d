// Package msgcache holds recently seen messages per channel. It backs reply
// lookups and answers history requests when the remote API is unavailable.
package msgcache

import (
	"sync"

	"github.com/InfiniteCod3/chatplugins/internal/model"
)

// DefaultLimit is the per-channel capacity used when New gets a non-positive limit.
const DefaultLimit = 1000

// Cache is a bounded, concurrency-safe message cache keyed by channel.
type Cache struct {
	mu       sync.RWMutex
	limit    int
	channels map[string]map[string]model.Message
}

// New creates a cache keeping at most limit messages per channel.
func New(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Cache{
		limit:    limit,
		channels: make(map[string]map[string]model.Message),
	}
}

// Put stores msgs, replacing earlier copies with the same ID. When a channel
// exceeds its capacity the oldest messages are evicted.
func (c *Cache) Put(channelID string, msgs ...model.Message) {
	if len(msgs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.channels[channelID]
	if !ok {
		ch = make(map[string]model.Message, len(msgs))
		c.channels[channelID] = ch
	}
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		ch[m.ID] = m
	}
	if len(ch) <= c.limit {
		return
	}

	all := make([]model.Message, 0, len(ch))
	for _, m := range ch {
		all = append(all, m)
	}
	model.SortChronological(all)
	for _, m := range all[:len(all)-c.limit] {
		delete(ch, m.ID)
	}
}

// Get looks up a single message.
func (c *Cache) Get(channelID, messageID string) (model.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.channels[channelID][messageID]
	return m, ok
}

// Find looks up a message by ID in any channel. Reply references do not always
// carry a channel ID.
func (c *Cache) Find(messageID string) (model.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.channels {
		if m, ok := ch[messageID]; ok {
			return m, true
		}
	}
	return model.Message{}, false
}

// Messages returns the cached messages of a channel in chronological order.
func (c *Cache) Messages(channelID string) []model.Message {
	c.mu.RLock()
	ch := c.channels[channelID]
	out := make([]model.Message, 0, len(ch))
	for _, m := range ch {
		out = append(out, m)
	}
	c.mu.RUnlock()

	model.SortChronological(out)
	return out
}

// Len returns the number of cached messages for a channel.
func (c *Cache) Len(channelID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.channels[channelID])
}

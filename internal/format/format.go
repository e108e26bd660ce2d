// Package format renders fetched messages as plain text for exports and for
// the AI assistant's context.
package format

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/InfiniteCod3/chatplugins/internal/model"
)

const (
	timeLayout    = "2006-01-02 15:04:05"
	snippetLength = 50
	notFound      = "[Message not found]"
)

// ErrFormat is returned when a message lacks the fields needed to render it.
var ErrFormat = errors.New("message cannot be formatted")

// Lookup resolves reply targets that are not part of the current batch.
// References do not always carry a channel, so lookups are by message ID.
type Lookup interface {
	Find(messageID string) (model.Message, bool)
}

// Formatter renders messages. It is pure given its inputs and the lookup.
type Formatter struct {
	fallback Lookup
	loc      *time.Location
}

// New creates a formatter. fallback may be nil. Timestamps render in UTC.
func New(fallback Lookup) *Formatter {
	return &Formatter{fallback: fallback, loc: time.UTC}
}

// WithLocation returns a copy rendering timestamps in loc.
func (f *Formatter) WithLocation(loc *time.Location) *Formatter {
	cp := *f
	cp.loc = loc
	return &cp
}

// Block renders one message, resolving its reply target in batch first.
func (f *Formatter) Block(m model.Message, batch []model.Message) (string, error) {
	return f.block(m, indexBatch(batch))
}

// Blocks renders every message of batch in order. A message that cannot be
// rendered is replaced by a placeholder line.
func (f *Formatter) Blocks(batch []model.Message) []string {
	index := indexBatch(batch)
	out := make([]string, 0, len(batch))
	for _, m := range batch {
		block, err := f.block(m, index)
		if err != nil {
			block = Placeholder(m)
		}
		out = append(out, block)
	}
	return out
}

// Placeholder is the line substituted for an unrenderable message.
func Placeholder(m model.Message) string {
	id := m.ID
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("[Failed to format message %s]", id)
}

func (f *Formatter) block(m model.Message, index map[string]model.Message) (string, error) {
	if m.ID == "" || m.Author == nil || m.Timestamp.IsZero() {
		return "", fmt.Errorf("%w: %q", ErrFormat, m.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", m.Timestamp.In(f.loc).Format(timeLayout), AuthorName(m.Author))
	if ref, ok := ReplyReference(m); ok {
		b.WriteString(" (replying to: ")
		b.WriteString(f.replyText(m, ref, index))
		b.WriteString(")")
	}

	if m.Content != "" {
		b.WriteString("\n")
		b.WriteString(m.Content)
	}
	for _, a := range m.Attachments {
		fmt.Fprintf(&b, "\nAttachment: %s (%s)", a.Filename, a.URL)
	}
	for _, e := range m.Embeds {
		parts := make([]string, 0, 3)
		for _, p := range []string{e.Title, e.Description, e.URL} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, "\nEmbed: %s", strings.Join(parts, " / "))
		}
	}
	return b.String(), nil
}

func (f *Formatter) replyText(m model.Message, ref Reference, index map[string]model.Message) string {
	parent, ok := index[ref.MessageID]
	if !ok && f.fallback != nil {
		parent, ok = f.fallback.Find(ref.MessageID)
	}
	if !ok && m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil {
		parent, ok = *m.ReferencedMessage, true
	}
	if !ok {
		return notFound
	}
	return AuthorName(parent.Author) + ": " + Snippet(parent.Content)
}

// AuthorName renders a user as display name plus "#discriminator" unless the
// discriminator is the default "0".
func AuthorName(u *model.User) string {
	name := u.DisplayName()
	if u != nil && u.Discriminator != "" && u.Discriminator != "0" {
		name += "#" + u.Discriminator
	}
	return name
}

// Snippet shortens reply text to a single line.
func Snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "[no text]"
	}
	if utf8.RuneCountInString(s) <= snippetLength {
		return s
	}
	r := []rune(s)
	return string(r[:snippetLength]) + "..."
}

func indexBatch(batch []model.Message) map[string]model.Message {
	index := make(map[string]model.Message, len(batch))
	for _, m := range batch {
		if _, seen := index[m.ID]; !seen {
			index[m.ID] = m
		}
	}
	return index
}

package export

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/discord"
	"github.com/InfiniteCod3/chatplugins/internal/format"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/metrics"
)

// FriendNote is a note attached to a friend.
type FriendNote struct {
	User model.User
	Note string
}

// Notes exports the notes written about friends. Friends without a note are
// skipped.
func (e *Exporter) Notes(ctx context.Context) (*Result, error) {
	if !e.remote.HasToken() {
		return nil, discord.ErrMissingToken
	}

	ctx, span := e.tracer.Start(ctx, "export.Notes")
	defer span.End()

	relationships, err := e.remote.GetRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get relationships: %w", err)
	}
	notes, err := e.remote.GetNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}

	friendNotes := JoinNotes(relationships, notes)
	now := e.clock.Now()

	metrics.ExportsTotal.WithLabelValues("notes").Inc()
	e.logger.Info("friend notes exported", zap.Int("count", len(friendNotes)))

	return &Result{
		Filename: fmt.Sprintf("friend-notes-%s.txt", now.UTC().Format("20060102-150405")),
		Text:     renderNotes(friendNotes, now),
		Count:    len(friendNotes),
	}, nil
}

// JoinNotes pairs friends with their notes, ordered by username.
func JoinNotes(relationships []model.Relationship, notes map[string]string) []FriendNote {
	var out []FriendNote
	for _, r := range relationships {
		if r.Type != model.RelationshipFriend {
			continue
		}
		id := r.User.ID
		if id == "" {
			id = r.ID
		}
		note := strings.TrimSpace(notes[id])
		if note == "" {
			continue
		}
		u := r.User
		u.ID = id
		out = append(out, FriendNote{User: u, Note: note})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].User.Username), strings.ToLower(out[j].User.Username)
		if a != b {
			return a < b
		}
		return out[i].User.ID < out[j].User.ID
	})
	return out
}

func renderNotes(notes []FriendNote, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total notes: %d\n", len(notes))
	fmt.Fprintf(&b, "Export date: %s\n", now.UTC().Format(time.RFC1123))
	for _, n := range notes {
		u := n.User
		fmt.Fprintf(&b, "\n%s (%s): %s", format.AuthorName(&u), u.ID, n.Note)
	}
	b.WriteString("\n")
	return b.String()
}

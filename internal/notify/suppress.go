package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/metrics"
)

// Suppression reasons reported in decisions.
const (
	ReasonChannel    = "channel"
	ReasonUser       = "user"
	ReasonKeyword    = "keyword"
	ReasonQuietHours = "quiet_hours"
)

// Rules configure notification suppression.
type Rules struct {
	Channels []string
	Users    []string
	Keywords []string
	// QuietHours is "HH:MM-HH:MM" in the suppressor's location. The window
	// may wrap midnight. Empty disables it.
	QuietHours string
}

// QuietHours is a daily window expressed as offsets from midnight.
type QuietHours struct {
	Start time.Duration
	End   time.Duration
}

// ParseQuietHours parses "HH:MM-HH:MM".
func ParseQuietHours(s string) (QuietHours, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return QuietHours{}, fmt.Errorf("invalid quiet hours %q: want HH:MM-HH:MM", s)
	}
	start, err := parseClock(from)
	if err != nil {
		return QuietHours{}, fmt.Errorf("invalid quiet hours start: %w", err)
	}
	end, err := parseClock(to)
	if err != nil {
		return QuietHours{}, fmt.Errorf("invalid quiet hours end: %w", err)
	}
	return QuietHours{Start: start, End: end}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains reports whether the time of day of t falls in the window.
func (q QuietHours) Contains(t time.Time) bool {
	if q.Start == q.End {
		return false
	}
	offset := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
	if q.Start < q.End {
		return offset >= q.Start && offset < q.End
	}
	return offset >= q.Start || offset < q.End
}

// Suppressor decides whether an incoming message should notify. Rules can be
// replaced at runtime.
type Suppressor struct {
	mu       sync.RWMutex
	channels map[string]bool
	users    map[string]bool
	keywords []string
	quiet    *QuietHours
	loc      *time.Location
}

// NewSuppressor compiles rules. Quiet hours are evaluated in loc, or local
// time when loc is nil.
func NewSuppressor(r Rules, loc *time.Location) (*Suppressor, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Suppressor{loc: loc}
	if err := s.SetRules(r); err != nil {
		return nil, err
	}
	return s, nil
}

// SetRules replaces the active rules.
func (s *Suppressor) SetRules(r Rules) error {
	var quiet *QuietHours
	if strings.TrimSpace(r.QuietHours) != "" {
		q, err := ParseQuietHours(r.QuietHours)
		if err != nil {
			return err
		}
		quiet = &q
	}

	keywords := make([]string, 0, len(r.Keywords))
	for _, k := range r.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = toSet(r.Channels)
	s.users = toSet(r.Users)
	s.keywords = keywords
	s.quiet = quiet
	return nil
}

// Decide applies the rules in order: muted channel, muted author, keyword,
// quiet hours. A direct mention bypasses quiet hours only.
func (s *Suppressor) Decide(msg model.Message, mentioned bool, now time.Time) model.NotificationDecision {
	d := model.NotificationDecision{MessageID: msg.ID, ChannelID: msg.ChannelID}
	d.Suppress, d.Reason = s.match(msg, mentioned, now)
	metrics.RecordDecision(d.Suppress, d.Reason)
	return d
}

func (s *Suppressor) match(msg model.Message, mentioned bool, now time.Time) (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.channels[msg.ChannelID] {
		return true, ReasonChannel
	}
	if msg.Author != nil && s.users[msg.Author.ID] {
		return true, ReasonUser
	}
	if len(s.keywords) > 0 {
		content := strings.ToLower(msg.Content)
		for _, k := range s.keywords {
			if strings.Contains(content, k) {
				return true, ReasonKeyword
			}
		}
	}
	if s.quiet != nil && !mentioned && s.quiet.Contains(now.In(s.loc)) {
		return true, ReasonQuietHours
	}
	return false, ""
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = true
		}
	}
	return set
}

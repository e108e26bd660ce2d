// Package store keeps per-channel AI conversation history in memory, bounded
// by count and age, and mirrors it to a persistence backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/clock"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/internal/notify"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
	"github.com/InfiniteCod3/chatplugins/pkg/metrics"
)

const (
	// DebounceDelay is how long a debounced save waits for further mutations.
	DebounceDelay = time.Second
	saveTimeout   = 10 * time.Second
)

// ErrPersistence wraps every load or save failure.
var ErrPersistence = errors.New("conversation persistence failed")

// Policy bounds retained history. Zero disables the respective bound.
type Policy struct {
	MaxCount   int
	MaxAgeDays int
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	data   model.ConversationData
	policy Policy
	loaded bool

	// saveMu serializes writes so snapshots reach the backend in order.
	saveMu  sync.Mutex
	persist Persistence

	timerMu sync.Mutex
	pending clock.Timer
	closed  bool

	clock    clock.Clock
	notifier notify.Notifier
	logger   *logger.Logger
}

// New creates an empty store. Call LoadAll to merge persisted history.
func New(p Persistence, clk clock.Clock, policy Policy, n notify.Notifier, log *logger.Logger) *Store {
	return &Store{
		data:     model.ConversationData{},
		policy:   policy,
		persist:  p,
		clock:    clk,
		notifier: n,
		logger:   log.Named("store"),
	}
}

// SetPolicy replaces the retention bounds. They apply from the next mutation.
func (s *Store) SetPolicy(p Policy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

// Loaded reports whether LoadAll has completed.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Append records a new entry stamped with the current time, prunes the
// channel and schedules a debounced save.
func (s *Store) Append(channelID string, role model.Role, content string) model.ConversationEntry {
	entry := model.ConversationEntry{Role: role, Content: content, Timestamp: s.clock.Now()}

	s.mu.Lock()
	s.data[channelID] = append(s.data[channelID], entry)
	pruned := s.pruneLocked(channelID)
	s.updateGaugeLocked()
	s.mu.Unlock()

	if pruned {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		_ = s.save(ctx, "prune")
		cancel()
	}
	s.SaveDebounced()
	return entry
}

// Prune applies the retention policy to one channel and saves immediately if
// anything was dropped. It reports whether the channel changed.
func (s *Store) Prune(ctx context.Context, channelID string) (bool, error) {
	s.mu.Lock()
	pruned := s.pruneLocked(channelID)
	s.updateGaugeLocked()
	s.mu.Unlock()

	if !pruned {
		return false, nil
	}
	return true, s.save(ctx, "prune")
}

// pruneLocked drops entries older than the age bound, then keeps only the
// newest MaxCount entries. Channels left empty are removed.
func (s *Store) pruneLocked(channelID string) bool {
	entries, ok := s.data[channelID]
	if !ok {
		return false
	}
	before := len(entries)

	if s.policy.MaxAgeDays > 0 {
		cutoff := s.clock.Now().Add(-time.Duration(s.policy.MaxAgeDays) * 24 * time.Hour)
		kept := make([]model.ConversationEntry, 0, len(entries))
		for _, e := range entries {
			if !e.Timestamp.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if s.policy.MaxCount > 0 && len(entries) > s.policy.MaxCount {
		entries = append([]model.ConversationEntry(nil), entries[len(entries)-s.policy.MaxCount:]...)
	}

	if len(entries) == before {
		return false
	}
	if len(entries) == 0 {
		delete(s.data, channelID)
	} else {
		s.data[channelID] = entries
	}
	return true
}

// Get returns a copy of the channel's entries, oldest first. Never nil.
func (s *Store) Get(channelID string) []model.ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.data[channelID]
	out := make([]model.ConversationEntry, len(entries))
	copy(out, entries)
	return out
}

// Channels lists channels with stored history, sorted.
func (s *Store) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clear removes a channel's history and saves immediately.
func (s *Store) Clear(ctx context.Context, channelID string) error {
	s.mu.Lock()
	delete(s.data, channelID)
	s.updateGaugeLocked()
	s.mu.Unlock()
	return s.save(ctx, "clear")
}

// LoadAll merges persisted history into memory and prunes every channel.
// Entries appended before the load completed are kept after the persisted
// ones. If pruning dropped anything the result is saved immediately.
func (s *Store) LoadAll(ctx context.Context) error {
	persisted, err := s.persist.Load(ctx)
	if err != nil {
		s.report(ctx, "Failed to load conversation history", err)
		return fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}
	if persisted == nil {
		persisted = model.ConversationData{}
	}

	s.mu.Lock()
	for channelID, entries := range s.data {
		persisted[channelID] = append(persisted[channelID], entries...)
	}
	s.data = persisted
	pruned := false
	for channelID := range s.data {
		if s.pruneLocked(channelID) {
			pruned = true
		}
	}
	s.loaded = true
	s.updateGaugeLocked()
	channels := len(s.data)
	s.mu.Unlock()

	s.logger.Info("conversation history loaded", zap.Int("channels", channels), zap.Bool("pruned", pruned))
	if pruned {
		return s.save(ctx, "load")
	}
	return nil
}

// SaveImmediate writes the current state now.
func (s *Store) SaveImmediate(ctx context.Context) error {
	return s.save(ctx, "immediate")
}

// SaveDebounced schedules a save DebounceDelay from now, cancelling any save
// already scheduled. A burst of mutations yields one write.
func (s *Store) SaveDebounced() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.closed {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
	}
	var t clock.Timer
	t = s.clock.AfterFunc(DebounceDelay, func() {
		s.timerMu.Lock()
		if s.pending == t {
			s.pending = nil
		}
		// A timer that fired while Close ran must not write to a backend
		// that is about to be released; Close has already flushed.
		closed := s.closed
		s.timerMu.Unlock()
		if closed {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		_ = s.save(ctx, "debounced")
	})
	s.pending = t
}

// Close cancels any pending debounced save and flushes state. Later
// mutations are no longer scheduled for saving.
func (s *Store) Close(ctx context.Context) error {
	s.timerMu.Lock()
	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.timerMu.Unlock()
	return s.save(ctx, "shutdown")
}

// save persists a snapshot taken at the moment the write runs, so a delayed
// save never writes stale state.
func (s *Store) save(ctx context.Context, trigger string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.Clone()
	s.mu.Unlock()

	err := s.persist.Save(ctx, snapshot)
	metrics.RecordSave(trigger, err)
	if err != nil {
		s.report(ctx, "Failed to save conversation history", err)
		return fmt.Errorf("%w: save: %w", ErrPersistence, err)
	}
	s.logger.Debug("conversation history saved", zap.String("trigger", trigger), zap.Int("channels", len(snapshot)))
	return nil
}

func (s *Store) report(ctx context.Context, title string, err error) {
	s.logger.Error(title, zap.Error(err))
	if s.notifier != nil {
		s.notifier.Notify(ctx, model.NoticeError, title, err.Error())
	}
}

func (s *Store) updateGaugeLocked() {
	total := 0
	for _, entries := range s.data {
		total += len(entries)
	}
	metrics.StoreEntries.Set(float64(total))
}

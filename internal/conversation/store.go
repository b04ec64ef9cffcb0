// Package conversation holds the session's append-only message log.
package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/normanking/daymind/internal/bus"
)

// WelcomeMessage seeds every new conversation
const WelcomeMessage = "👋 Hey! I'm DayMind. I'm here to help you plan your day, organize your thoughts, journal your feelings, and keep you on track. What would you like to work on today?"

// ThinkingText is what the pending placeholder renders as
const ThinkingText = "Thinking..."

// Role is who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageEntry is one committed message. Entries never change once appended;
// their index in the log is their only identity.
type MessageEntry struct {
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	IsVoice        bool      `json:"is_voice,omitempty"`
	AudioAvailable bool      `json:"audio_available,omitempty"`
	IsError        bool      `json:"is_error,omitempty"`
}

// Store is an append-only ordered log plus the ephemeral pending marker.
// The pending marker is never part of the log.
type Store struct {
	mu       sync.RWMutex
	entries  []MessageEntry
	pending  *Pending
	eventBus *bus.EventBus
}

// NewStore creates a store seeded with the assistant welcome entry
func NewStore(eventBus *bus.EventBus) *Store {
	return &Store{
		entries: []MessageEntry{{
			Role:      RoleAssistant,
			Content:   WelcomeMessage,
			Timestamp: time.Now(),
		}},
		eventBus: eventBus,
	}
}

// Append adds entries to the end of the log and clears the pending marker
// in the same step. It returns the index of the first appended entry.
func (s *Store) Append(entries ...MessageEntry) int {
	if len(entries) == 0 {
		return -1
	}

	s.mu.Lock()
	first := len(s.entries)
	now := time.Now()
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		s.entries = append(s.entries, e)
	}
	hadPending := s.pending != nil
	s.pending = nil
	s.mu.Unlock()

	for i, e := range entries {
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeMessageAppended,
			Data: map[string]any{
				"index":    first + i,
				"role":     string(e.Role),
				"is_voice": e.IsVoice,
				"is_error": e.IsError,
			},
		})
	}
	if hadPending {
		s.publishPending(false)
	}
	return first
}

// SetPending shows the thinking placeholder. echo is the user's text on
// the text path and empty for voice.
func (s *Store) SetPending(echo string, voice bool) {
	s.mu.Lock()
	s.pending = &Pending{Echo: echo, Voice: voice, Since: time.Now()}
	s.mu.Unlock()
	s.publishPending(true)
}

// ClearPending removes the placeholder without committing anything
func (s *Store) ClearPending() {
	s.mu.Lock()
	had := s.pending != nil
	s.pending = nil
	s.mu.Unlock()
	if had {
		s.publishPending(false)
	}
}

// PendingPlaceholder returns the placeholder while an exchange is in flight
func (s *Store) PendingPlaceholder() (Pending, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return Pending{}, false
	}
	return *s.pending, true
}

// IsPending reports whether an assistant turn is outstanding
func (s *Store) IsPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending != nil
}

// Len returns the number of committed entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// At returns the entry at index
func (s *Store) At(index int) (MessageEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.entries) {
		return MessageEntry{}, false
	}
	return s.entries[index], true
}

// Last returns the newest entry
func (s *Store) Last() MessageEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[len(s.entries)-1]
}

// Entries returns a copy of the log
func (s *Store) Entries() []MessageEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]MessageEntry, len(s.entries))
	copy(result, s.entries)
	return result
}

// Since returns a copy of the entries from index on
func (s *Store) Since(index int) []MessageEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index = max(0, min(index, len(s.entries)))
	result := make([]MessageEntry, len(s.entries)-index)
	copy(result, s.entries[index:])
	return result
}

// DisplayItems returns the committed log followed by the placeholder, if any
func (s *Store) DisplayItems() []DisplayItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]DisplayItem, 0, len(s.entries)+1)
	for i, e := range s.entries {
		items = append(items, Committed{Index: i, Entry: e})
	}
	if s.pending != nil {
		items = append(items, *s.pending)
	}
	return items
}

// Transcript renders the last n entries as plain text, n <= 0 for all
func (s *Store) Transcript(n int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 {
		start = max(len(s.entries)-n, 0)
	}

	var sb strings.Builder
	for _, e := range s.entries[start:] {
		speaker := "DayMind"
		if e.Role == RoleUser {
			speaker = "You"
			if e.IsVoice {
				speaker = "You (voice)"
			}
		}
		fmt.Fprintf(&sb, "[%s] %s: %s\n", e.Timestamp.Format("15:04"), speaker, e.Content)
	}
	return sb.String()
}

func (s *Store) publishPending(active bool) {
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypePendingChanged,
		Data: map[string]any{"pending": active},
	})
}

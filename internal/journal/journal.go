// Package journal is a thin client for the journaling tab: save, browse,
// search and summarize entries.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/normanking/daymind/internal/api"
	"github.com/normanking/daymind/internal/bus"
	"github.com/normanking/daymind/internal/metrics"
)

// RecentLimit is how many entries the recent list shows
const RecentLimit = 5

// Mood is how the user felt when writing
type Mood string

const (
	MoodAmazing  Mood = "amazing"
	MoodGood     Mood = "good"
	MoodNeutral  Mood = "neutral"
	MoodStressed Mood = "stressed"
	MoodSad      Mood = "sad"
)

var moodIcons = map[Mood]string{
	MoodAmazing:  "😄",
	MoodGood:     "😊",
	MoodNeutral:  "😐",
	MoodStressed: "😰",
	MoodSad:      "😢",
}

// Moods returns the selectable moods in display order
func Moods() []Mood {
	return []Mood{MoodAmazing, MoodGood, MoodNeutral, MoodStressed, MoodSad}
}

// Icon returns the mood's emoji, empty for unknown moods
func (m Mood) Icon() string { return moodIcons[m] }

// Label returns the capitalized mood name
func (m Mood) Label() string {
	if m == "" {
		return ""
	}
	return strings.ToUpper(string(m[:1])) + string(m[1:])
}

var (
	ErrEmptyEntry = errors.New("please write something before saving")
	ErrNoMood     = errors.New("please select a mood first")
	ErrBadMood    = errors.New("unknown mood")
)

// Backend is the journal part of the API client
type Backend interface {
	Journal(ctx context.Context) ([]api.JournalEntry, error)
	CreateJournalEntry(ctx context.Context, req api.JournalEntryRequest) (*api.JournalEntryResponse, error)
	SearchJournal(ctx context.Context, query string) ([]api.JournalEntry, error)
	JournalSummary(ctx context.Context) (*api.JournalSummary, error)
	JournalPrompts(ctx context.Context) ([]string, error)
	AudioURL() string
}

// Player plays the spoken reflection after a save
type Player interface {
	Play(ctx context.Context, url string) error
}

// SaveRequest is validated before it reaches the backend
type SaveRequest struct {
	Entry string `validate:"required"`
	Mood  Mood   `validate:"required,oneof=amazing good neutral stressed sad"`
}

// SaveResult is the stored entry and whether its reflection was played
type SaveResult struct {
	Entry  api.JournalEntry
	Played bool
}

// Service talks to the journal endpoints
type Service struct {
	backend  Backend
	player   Player
	validate *validator.Validate
	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// NewService creates a journal service; player may be nil
func NewService(backend Backend, player Player, eventBus *bus.EventBus, logger zerolog.Logger) *Service {
	return &Service{
		backend:  backend,
		player:   player,
		validate: validator.New(),
		eventBus: eventBus,
		logger:   logger.With().Str("component", "journal").Logger(),
	}
}

// Save stores an entry. Text must be non-blank and a mood chosen. When the
// backend synthesized the reflection it is played on the session's channel.
func (s *Service) Save(ctx context.Context, text string, mood Mood) (*SaveResult, error) {
	req := SaveRequest{Entry: strings.TrimSpace(text), Mood: mood}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			switch {
			case verrs[0].Field() == "Entry":
				return nil, ErrEmptyEntry
			case verrs[0].Tag() == "required":
				return nil, ErrNoMood
			default:
				return nil, fmt.Errorf("%w: %q", ErrBadMood, mood)
			}
		}
		return nil, err
	}

	resp, err := s.backend.CreateJournalEntry(ctx, api.JournalEntryRequest{Entry: text, Mood: string(mood)})
	if err != nil {
		return nil, fmt.Errorf("save journal entry: %w", err)
	}
	metrics.JournalSaves.WithLabelValues(string(mood)).Inc()

	result := &SaveResult{Entry: resp.JournalEntry}
	if resp.AudioAvailable && s.player != nil {
		if perr := s.player.Play(ctx, s.backend.AudioURL()); perr != nil {
			s.logger.Warn().Err(perr).Msg("Reflection audio not played")
		} else {
			result.Played = true
		}
	}

	s.logger.Info().Int("id", resp.ID).Str("mood", string(mood)).Msg("Journal entry saved")
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypeJournalSaved,
		Data: map[string]any{"id": resp.ID, "mood": string(mood)},
	})
	return result, nil
}

// Recent returns the last RecentLimit entries, newest first
func (s *Service) Recent(ctx context.Context) ([]api.JournalEntry, error) {
	entries, err := s.backend.Journal(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	start := max(len(entries)-RecentLimit, 0)
	recent := make([]api.JournalEntry, 0, len(entries)-start)
	for i := len(entries) - 1; i >= start; i-- {
		recent = append(recent, entries[i])
	}
	return recent, nil
}

// Search finds entries by text or mood. A blank query is a no-op.
func (s *Service) Search(ctx context.Context, query string) ([]api.JournalEntry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	results, err := s.backend.SearchJournal(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search journal: %w", err)
	}
	return results, nil
}

// Summary returns the weekly summary and stats
func (s *Service) Summary(ctx context.Context) (*api.JournalSummary, error) {
	summary, err := s.backend.JournalSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal summary: %w", err)
	}
	return summary, nil
}

// Prompts returns today's reflection prompts
func (s *Service) Prompts(ctx context.Context) ([]string, error) {
	prompts, err := s.backend.JournalPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal prompts: %w", err)
	}
	return prompts, nil
}

// ParseMood parses a case-insensitive mood name
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return "", ErrNoMood
	}
	if _, ok := moodIcons[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrBadMood, s)
	}
	return m, nil
}

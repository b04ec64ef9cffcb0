package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message string `json:"message"`
	Emotion string `json:"emotion"`
}

// ChatResponse is returned by POST /chat
type ChatResponse struct {
	Response       string `json:"response" validate:"required"`
	AudioAvailable bool   `json:"audio_available"`
}

// VoiceResponse is returned by POST /voice
type VoiceResponse struct {
	Transcription  string `json:"transcription" validate:"required"`
	Response       string `json:"response" validate:"required"`
	AudioAvailable bool   `json:"audio_available"`
}

// Task is an externally owned task, addressed by its position in the list
type Task struct {
	Task      string    `json:"task"`
	Completed bool      `json:"completed"`
	Created   Timestamp `json:"created"`
}

// TaskList is returned by GET /tasks
type TaskList struct {
	Tasks []Task `json:"tasks"`
}

type completeTaskRequest struct {
	Index int `json:"index"`
}

// JournalEntry is one saved journal entry
type JournalEntry struct {
	ID         int       `json:"id"`
	Entry      string    `json:"entry"`
	Mood       string    `json:"mood"`
	AIResponse string    `json:"ai_response"`
	Timestamp  Timestamp `json:"timestamp"`
	Date       string    `json:"date"`
}

// JournalEntryRequest is the body of POST /journal/entry
type JournalEntryRequest struct {
	Entry string `json:"entry"`
	Mood  string `json:"mood"`
}

// JournalEntryResponse is the saved entry plus the audio flag
type JournalEntryResponse struct {
	JournalEntry
	AudioAvailable bool `json:"audio_available"`
}

// Journal is returned by GET /journal
type Journal struct {
	Entries []JournalEntry `json:"entries"`
}

type journalSearchRequest struct {
	Query string `json:"query"`
}

type journalSearchResponse struct {
	Results []JournalEntry `json:"results"`
}

// JournalStats summarizes the past week
type JournalStats struct {
	TotalEntries   int    `json:"total_entries"`
	MostCommonMood string `json:"most_common_mood"`
	DaysJournaled  int    `json:"days_journaled"`
}

// JournalSummary is returned by GET /journal/summary
type JournalSummary struct {
	Summary string       `json:"summary"`
	Stats   JournalStats `json:"stats"`
}

type journalPromptsResponse struct {
	Prompts []string `json:"prompts"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Timestamp accepts the backend's ISO timestamps, which may lack a zone
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

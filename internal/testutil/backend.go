// Package testutil provides a mock DayMind backend and audio helpers for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// ChatReply is what the mock returns from /chat
type ChatReply struct {
	Response       string
	AudioAvailable bool
}

// VoiceReply is what the mock returns from /voice
type VoiceReply struct {
	Transcription  string
	Response       string
	AudioAvailable bool
}

// MockTask mirrors the backend task shape
type MockTask struct {
	Task      string `json:"task"`
	Completed bool   `json:"completed"`
	Created   string `json:"created"`
}

// MockJournalEntry mirrors the backend journal entry shape
type MockJournalEntry struct {
	ID         int    `json:"id"`
	Entry      string `json:"entry"`
	Mood       string `json:"mood"`
	AIResponse string `json:"ai_response"`
	Timestamp  string `json:"timestamp"`
	Date       string `json:"date"`
}

// MockBackend is a scriptable in-memory DayMind backend
type MockBackend struct {
	Server *httptest.Server

	mu        sync.Mutex
	chat      ChatReply
	voice     VoiceReply
	fail      map[string]int // path -> status code to fail with
	raw       map[string]string
	delay     map[string]time.Duration
	gate      map[string]chan struct{}
	tasks     []MockTask
	journal   []MockJournalEntry
	prompts   []string
	calls     map[string]int
	lastChat  map[string]string
	lastAudio []byte
	audio     []byte
	audioQs   []string
}

// NewMockBackend starts a mock backend that is closed with the test
func NewMockBackend(t *testing.T) *MockBackend {
	t.Helper()

	m := &MockBackend{
		chat:  ChatReply{Response: "Here's a plan"},
		voice: VoiceReply{Transcription: "buy milk", Response: "Added to your list"},
		fail:  make(map[string]int),
		raw:   make(map[string]string),
		delay: make(map[string]time.Duration),
		gate:  make(map[string]chan struct{}),
		calls: make(map[string]int),
		tasks: []MockTask{},
		prompts: []string{
			"What went well today?",
			"What challenged you today?",
			"What are you grateful for?",
		},
		audio: GenerateTestAudio(t, 100*time.Millisecond),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Server.Close)
	return m
}

// URL returns the base address of the mock
func (m *MockBackend) URL() string {
	return m.Server.URL
}

// SetChatReply scripts the /chat response
func (m *MockBackend) SetChatReply(r ChatReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat = r
}

// SetVoiceReply scripts the /voice response
func (m *MockBackend) SetVoiceReply(r VoiceReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voice = r
}

// FailPath makes path answer with status; status 0 restores it
func (m *MockBackend) FailPath(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == 0 {
		delete(m.fail, path)
		return
	}
	m.fail[path] = status
}

// RawReply makes path answer 200 with body verbatim
func (m *MockBackend) RawReply(path, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[path] = body
}

// Delay holds responses on path for d
func (m *MockBackend) Delay(path string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay[path] = d
}

// Hold blocks requests on path until the returned func is called
func (m *MockBackend) Hold(path string) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gate[path] = ch
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.gate, path)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// SetTasks replaces the task list
func (m *MockBackend) SetTasks(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = m.tasks[:0]
	for _, n := range names {
		m.tasks = append(m.tasks, MockTask{Task: n, Created: time.Now().Format("2006-01-02T15:04:05.000000")})
	}
}

// AddJournalEntry seeds a journal entry
func (m *MockBackend) AddJournalEntry(text, mood string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addJournalLocked(text, mood, at)
}

func (m *MockBackend) addJournalLocked(text, mood string, at time.Time) MockJournalEntry {
	e := MockJournalEntry{
		ID:         len(m.journal) + 1,
		Entry:      text,
		Mood:       mood,
		AIResponse: "Thanks for sharing.",
		Timestamp:  at.Format("2006-01-02T15:04:05.000000"),
		Date:       at.Format("January 02, 2006"),
	}
	m.journal = append(m.journal, e)
	return e
}

// Calls returns how many requests hit path
func (m *MockBackend) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

// LastChat returns the last /chat body
func (m *MockBackend) LastChat() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastChat
}

// LastVoiceUpload returns the last uploaded audio bytes
func (m *MockBackend) LastVoiceUpload() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAudio
}

// AudioQueries returns the t= tokens seen on /audio
func (m *MockBackend) AudioQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.audioQs...)
}

// Tasks returns the current task list
func (m *MockBackend) Tasks() []MockTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockTask(nil), m.tasks...)
}

func (m *MockBackend) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	m.mu.Lock()
	m.calls[path]++
	status, failing := m.fail[path]
	raw, hasRaw := m.raw[path]
	delay := m.delay[path]
	gate := m.gate[path]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	if failing {
		writeJSON(w, status, map[string]any{"error": fmt.Sprintf("mock failure on %s", path)})
		return
	}
	if hasRaw {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, raw)
		return
	}

	switch {
	case path == "/chat" && r.Method == http.MethodPost:
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["message"] == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No message provided"})
			return
		}
		m.mu.Lock()
		m.lastChat = body
		reply := m.chat
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"response":        reply.Response,
			"audio_available": reply.AudioAvailable,
		})

	case path == "/voice" && r.Method == http.MethodPost:
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to parse multipart form"})
			return
		}
		file, _, err := r.FormFile("audio")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No audio file"})
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)

		m.mu.Lock()
		m.lastAudio = data
		reply := m.voice
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"transcription":   reply.Transcription,
			"response":        reply.Response,
			"audio_available": reply.AudioAvailable,
		})

	case path == "/audio":
		m.mu.Lock()
		m.audioQs = append(m.audioQs, r.URL.Query().Get("t"))
		audio := m.audio
		m.mu.Unlock()
		w.Header().Set("Content-Type", "audio/wav")
		w.WriteHeader(http.StatusOK)
		w.Write(audio)

	case path == "/tasks":
		m.mu.Lock()
		tasks := append([]MockTask{}, m.tasks...)
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})

	case path == "/tasks/complete" && r.Method == http.MethodPost:
		var body struct {
			Index *int `json:"index"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		m.mu.Lock()
		defer m.mu.Unlock()
		if body.Index == nil || *body.Index < 0 || *body.Index >= len(m.tasks) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid task index"})
			return
		}
		m.tasks[*body.Index].Completed = true
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case path == "/tasks/clear" && r.Method == http.MethodPost:
		m.mu.Lock()
		m.tasks = []MockTask{}
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case path == "/journal" && r.Method == http.MethodGet:
		m.mu.Lock()
		entries := append([]MockJournalEntry{}, m.journal...)
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})

	case path == "/journal/entry" && r.Method == http.MethodPost:
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["entry"] == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Entry text required"})
			return
		}
		mood := body["mood"]
		if mood == "" {
			mood = "neutral"
		}
		m.mu.Lock()
		e := m.addJournalLocked(body["entry"], mood, time.Now())
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"id":              e.ID,
			"entry":           e.Entry,
			"mood":            e.Mood,
			"ai_response":     e.AIResponse,
			"timestamp":       e.Timestamp,
			"date":            e.Date,
			"audio_available": true,
		})

	case path == "/journal/search" && r.Method == http.MethodPost:
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		q := strings.ToLower(body["query"])
		m.mu.Lock()
		results := []MockJournalEntry{}
		for _, e := range m.journal {
			if strings.Contains(strings.ToLower(e.Entry), q) || strings.Contains(strings.ToLower(e.Mood), q) {
				results = append(results, e)
			}
		}
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"results": results})

	case path == "/journal/summary":
		m.mu.Lock()
		n := len(m.journal)
		m.mu.Unlock()
		if n == 0 {
			writeJSON(w, http.StatusOK, map[string]any{
				"summary": "No journal entries this week. Start journaling to see insights!",
				"stats":   map[string]any{"total_entries": 0, "most_common_mood": "neutral", "days_journaled": 0},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"summary": "You showed up for yourself this week.",
			"stats":   map[string]any{"total_entries": n, "most_common_mood": "good", "days_journaled": 1},
		})

	case path == "/journal/prompts":
		m.mu.Lock()
		prompts := append([]string{}, m.prompts...)
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Package session owns everything one user session needs: the message log,
// the microphone, the audio output channel, the exchange gate, the task
// cache and the journal client.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/daymind/internal/api"
	"github.com/normanking/daymind/internal/audio"
	"github.com/normanking/daymind/internal/bus"
	"github.com/normanking/daymind/internal/config"
	"github.com/normanking/daymind/internal/conversation"
	"github.com/normanking/daymind/internal/exchange"
	"github.com/normanking/daymind/internal/journal"
	"github.com/normanking/daymind/internal/metrics"
	"github.com/normanking/daymind/internal/tasks"
)

// Config holds the session's tunables
type Config struct {
	Emotion          exchange.Emotion
	Capture          *audio.CaptureConfig
	ProgressInterval time.Duration
	PlaybackEnabled  bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Emotion:          exchange.DefaultEmotion,
		Capture:          audio.DefaultCaptureConfig(),
		ProgressInterval: 250 * time.Millisecond,
		PlaybackEnabled:  true,
	}
}

// ConfigFrom maps the application config onto session settings
func ConfigFrom(cfg *config.Config) (*Config, error) {
	emotion, err := exchange.ParseEmotion(cfg.User.Emotion)
	if err != nil {
		return nil, err
	}
	capture := audio.DefaultCaptureConfig()
	capture.Format.SampleRate = cfg.Audio.SampleRate
	capture.Format.Channels = cfg.Audio.Channels
	capture.ChunkSize = cfg.Audio.ChunkSize
	capture.MaxRecording = cfg.Audio.MaxRecording

	return &Config{
		Emotion:          emotion,
		Capture:          capture,
		ProgressInterval: cfg.Playback.ProgressInterval,
		PlaybackEnabled:  cfg.Playback.Enabled,
	}, nil
}

// Snapshot is the session state a renderer needs
type Snapshot struct {
	ID        string                     `json:"id"`
	State     string                     `json:"state"`
	Emotion   exchange.Emotion           `json:"emotion"`
	Recording bool                       `json:"recording"`
	Items     []conversation.DisplayView `json:"items"`
	Tasks     []api.Task                 `json:"tasks"`
	Counts    tasks.Counts               `json:"counts"`
	Playback  audio.PlaybackState        `json:"playback"`
}

// Session exclusively owns one capture and one playback controller
type Session struct {
	id          string
	client      *api.Client
	store       *conversation.Store
	capture     *audio.CaptureController
	playback    *audio.PlaybackController
	coordinator *exchange.Coordinator
	tasks       *tasks.Adapter
	journal     *journal.Service
	eventBus    *bus.EventBus
	logger      zerolog.Logger

	mu      sync.RWMutex
	emotion exchange.Emotion
}

// New wires a session around the backend client and the audio devices
func New(client *api.Client, mic audio.Microphone, player audio.Player, cfg *Config, eventBus *bus.EventBus, logger zerolog.Logger) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Emotion.Valid() {
		cfg.Emotion = exchange.DefaultEmotion
	}

	s := &Session{
		id:       uuid.NewString(),
		client:   client,
		store:    conversation.NewStore(eventBus),
		eventBus: eventBus,
		emotion:  cfg.Emotion,
	}
	s.logger = logger.With().Str("component", "session").Str("session", s.id).Logger()

	s.capture = audio.NewCaptureController(mic, cfg.Capture, eventBus, logger)
	s.playback = audio.NewPlaybackController(player, cfg.ProgressInterval, eventBus, logger)
	s.tasks = tasks.NewAdapter(client, eventBus, logger)

	var replyPlayer exchange.Player
	var reflectionPlayer journal.Player
	if cfg.PlaybackEnabled {
		replyPlayer = s.playback
		reflectionPlayer = s.playback
	}
	s.coordinator = exchange.NewCoordinator(client, s.store, replyPlayer, s.tasks, eventBus, logger)
	s.journal = journal.NewService(client, reflectionPlayer, eventBus, logger)

	return s
}

// ID returns the session's correlation id
func (s *Session) ID() string { return s.id }

// Start loads the initial task list. A failed refresh is logged, not fatal.
func (s *Session) Start(ctx context.Context) {
	s.logger.Info().Str("backend", s.client.BaseURL()).Msg("Session started")
	if err := s.tasks.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Initial task refresh failed")
	}
}

// Close releases the microphone and the audio output
func (s *Session) Close() {
	s.capture.Cancel()
	s.playback.Stop()
	s.logger.Info().Msg("Session closed")
}

// Emotion returns the tone used for text requests
func (s *Session) Emotion() exchange.Emotion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emotion
}

// SetEmotion changes the tone used for later text requests
func (s *Session) SetEmotion(e exchange.Emotion) error {
	if !e.Valid() {
		return fmt.Errorf("%w: %q", exchange.ErrInvalidEmotion, e)
	}
	s.mu.Lock()
	s.emotion = e
	s.mu.Unlock()
	return nil
}

// SendText submits a typed message with the session's emotion
func (s *Session) SendText(ctx context.Context, message string) (*exchange.Result, error) {
	return s.coordinator.SubmitText(ctx, message, s.Emotion())
}

// StartRecording opens the microphone. It is refused while an exchange
// is in flight and is a no-op while already recording.
func (s *Session) StartRecording(ctx context.Context) error {
	if s.coordinator.Busy() {
		return exchange.ErrBusy
	}
	return s.capture.Start(ctx)
}

// StopRecording ends the recording and submits it as a voice exchange
func (s *Session) StopRecording(ctx context.Context) (*exchange.Result, error) {
	done, ok := s.capture.Stop()
	if !ok {
		return nil, audio.ErrNotRecording
	}

	var rec audio.Recording
	select {
	case rec = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if rec.Err != nil {
		s.logger.Warn().Err(rec.Err).Str("recording", rec.SessionID).Msg("Recording discarded")
		return nil, rec.Err
	}
	metrics.RecordingSeconds.Observe(rec.Duration.Seconds())

	return s.coordinator.SubmitVoice(ctx, rec.Data)
}

// CancelRecording discards the current recording
func (s *Session) CancelRecording() bool {
	return s.capture.Cancel()
}

// Recording reports whether the microphone is open
func (s *Session) Recording() bool {
	return s.capture.IsRecording()
}

// RecordingElapsed returns how long the microphone has been open
func (s *Session) RecordingElapsed() time.Duration {
	return s.capture.Elapsed()
}

// StopPlayback halts the audio output. Safe when nothing plays.
func (s *Session) StopPlayback() {
	s.playback.Stop()
}

// CompleteTask marks a task done by position and refreshes the list
func (s *Session) CompleteTask(ctx context.Context, index int) error {
	return s.tasks.Complete(ctx, index)
}

// ClearTasks removes every task and refreshes the list
func (s *Session) ClearTasks(ctx context.Context) error {
	return s.tasks.Clear(ctx)
}

// Store returns the conversation log
func (s *Session) Store() *conversation.Store { return s.store }

// Tasks returns the task cache
func (s *Session) Tasks() *tasks.Adapter { return s.tasks }

// Journal returns the journal client
func (s *Session) Journal() *journal.Service { return s.journal }

// Playback returns the audio output controller
func (s *Session) Playback() *audio.PlaybackController { return s.playback }

// Coordinator returns the exchange gate
func (s *Session) Coordinator() *exchange.Coordinator { return s.coordinator }

// Snapshot captures the current renderable state
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:        s.id,
		State:     s.coordinator.State().String(),
		Emotion:   s.Emotion(),
		Recording: s.capture.IsRecording(),
		Items:     conversation.Views(s.store.DisplayItems()),
		Tasks:     s.tasks.Tasks(),
		Counts:    s.tasks.Counts(),
		Playback:  s.playback.State(),
	}
}

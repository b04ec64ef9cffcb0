// Package exchange runs one request/response cycle at a time between the
// user and the assistant backend.
package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/daymind/internal/api"
	"github.com/normanking/daymind/internal/bus"
	"github.com/normanking/daymind/internal/conversation"
	"github.com/normanking/daymind/internal/metrics"
)

// Kind distinguishes text and voice exchanges
type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
)

// Request is the single outstanding exchange
type Request struct {
	Kind    Kind
	Message string  // text only
	Emotion Emotion // text only
	Audio   []byte  // voice only, WAV
}

// Result describes a finished exchange. Err is set when the backend call
// failed; the failure has already been recorded as an error entry.
type Result struct {
	ID             string
	Kind           Kind
	Transcription  string
	Response       string
	AudioAvailable bool
	Played         bool
	Duration       time.Duration
	Err            error
}

// Backend is the part of the API client an exchange needs
type Backend interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	Voice(ctx context.Context, audio []byte) (*api.VoiceResponse, error)
	AudioURL() string
}

// Player starts reply audio; it replaces anything already playing
type Player interface {
	Play(ctx context.Context, url string) error
}

// TaskRefresher reloads the task list after a successful exchange
type TaskRefresher interface {
	Refresh(ctx context.Context) error
}

// Coordinator turns user input into backend requests and applies the
// responses to the conversation store. Only one exchange runs at a time.
type Coordinator struct {
	backend  Backend
	store    *conversation.Store
	player   Player
	tasks    TaskRefresher
	gate     *Gate
	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// NewCoordinator wires a coordinator. player and tasks may be nil.
func NewCoordinator(backend Backend, store *conversation.Store, player Player, tasks TaskRefresher, eventBus *bus.EventBus, logger zerolog.Logger) *Coordinator {
	c := &Coordinator{
		backend:  backend,
		store:    store,
		player:   player,
		tasks:    tasks,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "exchange").Logger(),
	}
	c.gate = NewGate(c.onStateChange)
	return c
}

// State returns the gate's current state
func (c *Coordinator) State() State {
	return c.gate.State()
}

// Busy reports whether an exchange is outstanding
func (c *Coordinator) Busy() bool {
	return c.gate.State() != StateIdle
}

// SubmitText sends a typed message. Whitespace-only input is rejected with
// ErrEmptyMessage and a submission while busy with ErrBusy; neither
// touches the store.
func (c *Coordinator) SubmitText(ctx context.Context, message string, emotion Emotion) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if emotion == "" {
		emotion = DefaultEmotion
	}
	if !emotion.Valid() {
		return nil, ErrInvalidEmotion
	}
	return c.run(ctx, Request{Kind: KindText, Message: message, Emotion: emotion})
}

// SubmitVoice sends a captured recording for transcription and a reply
func (c *Coordinator) SubmitVoice(ctx context.Context, audio []byte) (*Result, error) {
	return c.run(ctx, Request{Kind: KindVoice, Audio: audio})
}

func (c *Coordinator) run(ctx context.Context, req Request) (*Result, error) {
	if !c.gate.TryAcquire() {
		metrics.RejectedSubmissions.Inc()
		c.logger.Debug().Str("kind", string(req.Kind)).Msg("Submission rejected, exchange in flight")
		return nil, ErrBusy
	}

	result := &Result{ID: uuid.NewString(), Kind: req.Kind}
	start := time.Now()

	c.store.SetPending(req.Message, req.Kind == KindVoice)
	c.eventBus.Publish(bus.Event{
		Type: bus.EventTypeExchangeStarted,
		Data: map[string]any{"id": result.ID, "kind": string(req.Kind)},
	})
	c.logger.Info().Str("id", result.ID).Str("kind", string(req.Kind)).Msg(">>> Exchange started")

	user, assistant, err := c.send(ctx, req, result)
	result.Duration = time.Since(start)
	metrics.ExchangeDuration.WithLabelValues(string(req.Kind)).Observe(result.Duration.Seconds())
	metrics.ExchangesTotal.WithLabelValues(string(req.Kind), metrics.Outcome(err)).Inc()

	if err != nil {
		c.fail(req, result, err)
		return result, nil
	}

	c.mustTransition(StateSuccess)
	c.store.Append(user, assistant)

	c.logger.Info().
		Str("id", result.ID).
		Int("responseLen", len(result.Response)).
		Bool("audio", result.AudioAvailable).
		Dur("elapsed", result.Duration).
		Msg("<<< Exchange succeeded")

	if result.AudioAvailable && c.player != nil {
		if perr := c.player.Play(ctx, c.backend.AudioURL()); perr != nil {
			// unplayable audio is not surfaced in the conversation
			c.logger.Warn().Err(perr).Str("id", result.ID).Msg("Reply audio not played")
			metrics.PlaybackStarts.WithLabelValues(metrics.OutcomeFailure).Inc()
		} else {
			result.Played = true
			metrics.PlaybackStarts.WithLabelValues(metrics.OutcomeSuccess).Inc()
		}
	}

	if c.tasks != nil {
		if terr := c.tasks.Refresh(ctx); terr != nil {
			c.logger.Warn().Err(terr).Str("id", result.ID).Msg("Task refresh after exchange failed")
		}
	}

	c.eventBus.Publish(bus.Event{
		Type: bus.EventTypeExchangeCompleted,
		Data: map[string]any{
			"id":              result.ID,
			"kind":            string(req.Kind),
			"audio_available": result.AudioAvailable,
			"duration_ms":     result.Duration.Milliseconds(),
		},
	})
	c.mustTransition(StateIdle)
	return result, nil
}

func (c *Coordinator) send(ctx context.Context, req Request, result *Result) (user, assistant conversation.MessageEntry, err error) {
	switch req.Kind {
	case KindVoice:
		resp, err := c.backend.Voice(ctx, req.Audio)
		if err != nil {
			return user, assistant, err
		}
		result.Transcription = resp.Transcription
		result.Response = resp.Response
		result.AudioAvailable = resp.AudioAvailable
		user = conversation.MessageEntry{
			Role:    conversation.RoleUser,
			Content: resp.Transcription,
			IsVoice: true,
		}

	default:
		resp, err := c.backend.Chat(ctx, api.ChatRequest{Message: req.Message, Emotion: string(req.Emotion)})
		if err != nil {
			return user, assistant, err
		}
		result.Response = resp.Response
		result.AudioAvailable = resp.AudioAvailable
		user = conversation.MessageEntry{
			Role:    conversation.RoleUser,
			Content: req.Message,
		}
	}

	now := time.Now()
	user.Timestamp = now
	assistant = conversation.MessageEntry{
		Role:           conversation.RoleAssistant,
		Content:        result.Response,
		Timestamp:      now,
		AudioAvailable: result.AudioAvailable,
	}
	return user, assistant, nil
}

// fail records a single error entry, after the echoed text for a typed
// message, and returns the gate to Idle
func (c *Coordinator) fail(req Request, result *Result, err error) {
	result.Err = err
	c.mustTransition(StateFailed)

	apology := conversation.MessageEntry{
		Role:      conversation.RoleAssistant,
		Content:   TextApology,
		Timestamp: time.Now(),
		IsError:   true,
	}
	if req.Kind == KindVoice {
		// nothing was transcribed, so there is no user text to keep
		apology.Content = VoiceApology
		c.store.Append(apology)
	} else {
		// the typed message stays next to the apology so the log shows what failed
		c.store.Append(conversation.MessageEntry{
			Role:      conversation.RoleUser,
			Content:   req.Message,
			Timestamp: apology.Timestamp,
		}, apology)
	}

	c.logger.Error().Err(err).Str("id", result.ID).Str("kind", string(req.Kind)).Msg("<<< Exchange failed")
	c.eventBus.Publish(bus.Event{
		Type: bus.EventTypeExchangeFailed,
		Data: map[string]any{
			"id":    result.ID,
			"kind":  string(req.Kind),
			"error": err.Error(),
		},
	})
	c.mustTransition(StateIdle)
}

// mustTransition only fails on a programming error, which is logged
func (c *Coordinator) mustTransition(to State) {
	if err := c.gate.Transition(to); err != nil {
		c.logger.Error().Err(err).Msg("Exchange state machine violated")
	}
}

func (c *Coordinator) onStateChange(from, to State) {
	if to == StateSending {
		metrics.ExchangeInFlight.Set(1)
	} else if to == StateIdle {
		metrics.ExchangeInFlight.Set(0)
	}
	c.eventBus.Publish(bus.Event{
		Type: bus.EventTypeStateChanged,
		Data: map[string]any{"from": from.String(), "to": to.String()},
	})
}

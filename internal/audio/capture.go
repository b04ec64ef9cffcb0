package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/daymind/internal/bus"
)

// CaptureConfig configures the capture controller
type CaptureConfig struct {
	Format       Format
	ChunkSize    int           // bytes per read, default 100ms of audio
	MaxRecording time.Duration // capture stops buffering past this
}

// DefaultCaptureConfig returns sensible defaults
func DefaultCaptureConfig() *CaptureConfig {
	return &CaptureConfig{
		Format:       DefaultFormat(),
		ChunkSize:    3200,
		MaxRecording: 2 * time.Minute,
	}
}

// CaptureController owns the microphone session lifecycle.
// At most one session is open; Start while recording is a no-op.
type CaptureController struct {
	config   *CaptureConfig
	mic      Microphone
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu      sync.Mutex
	session *RecordingSession
	stream  io.ReadCloser
	done    chan struct{}
	opening bool // mic.Open in progress, c.mu is not held across it
	aborted bool // Stop or Cancel arrived while opening
}

// NewCaptureController creates a capture controller for mic
func NewCaptureController(mic Microphone, config *CaptureConfig, eventBus *bus.EventBus, logger zerolog.Logger) *CaptureController {
	if config == nil {
		config = DefaultCaptureConfig()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 3200
	}
	if config.Format.SampleRate == 0 {
		config.Format = DefaultFormat()
	}

	return &CaptureController{
		config:   config,
		mic:      mic,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "capture").Logger(),
	}
}

// Start opens the microphone and begins buffering.
// On a *PermissionError no session is created.
// Open may block on a permission prompt; IsRecording and Elapsed stay
// responsive meanwhile, and a Stop or Cancel during it aborts the start
// with ErrStartAborted.
func (c *CaptureController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.session != nil || c.opening {
		c.mu.Unlock()
		return nil
	}
	c.opening = true
	c.aborted = false
	c.mu.Unlock()

	stream, err := c.mic.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.opening = false

	if err == nil && c.aborted {
		_ = stream.Close()
		c.logger.Info().Msg("Recording aborted while opening microphone")
		return ErrStartAborted
	}
	if err != nil {
		var perr *PermissionError
		if !errors.As(err, &perr) {
			err = &PermissionError{Device: "default", Err: err}
		}
		c.logger.Warn().Err(err).Msg("Microphone unavailable")
		c.eventBus.Publish(bus.Event{
			Type: bus.EventTypeRecordingFailed,
			Data: map[string]any{"error": err.Error()},
		})
		return err
	}

	session := &RecordingSession{
		ID:      uuid.NewString(),
		Active:  true,
		Started: time.Now(),
	}
	done := make(chan struct{})

	c.session = session
	c.stream = stream
	c.done = done

	go c.readLoop(session, stream, done)

	c.logger.Info().Str("session", session.ID).Msg("Recording started")
	c.eventBus.Publish(bus.Event{
		Type: bus.EventTypeRecordingStarted,
		Data: map[string]any{"session_id": session.ID},
	})
	return nil
}

func (c *CaptureController) readLoop(s *RecordingSession, stream io.Reader, done chan struct{}) {
	defer close(done)

	maxBytes := 0
	if c.config.MaxRecording > 0 {
		maxBytes = int(c.config.MaxRecording.Seconds() * float64(c.config.Format.BytesPerSecond()))
	}
	limited := false

	buf := make([]byte, c.config.ChunkSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			c.mu.Lock()
			if maxBytes > 0 && s.bytes+n > maxBytes {
				n = maxBytes - s.bytes
				if !limited {
					limited = true
					c.logger.Warn().Str("session", s.ID).Dur("max", c.config.MaxRecording).Msg("Recording hit max length, further audio dropped")
				}
			}
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				s.Chunks = append(s.Chunks, chunk)
				s.bytes += n
			}
			c.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				c.mu.Lock()
				s.err = err
				c.mu.Unlock()
			}
			return
		}
	}
}

// Stop finalizes the session. The payload arrives later on the returned
// channel, which delivers exactly one Recording and closes. ok is false
// when no session was active.
func (c *CaptureController) Stop() (result <-chan Recording, ok bool) {
	s, stream, done := c.detach()
	if s == nil {
		return nil, false
	}

	ch := make(chan Recording, 1)
	go func() {
		defer close(ch)
		_ = stream.Close()
		<-done

		rec := c.finalize(s)
		c.logger.Info().
			Str("session", s.ID).
			Int("chunks", rec.Chunks).
			Dur("duration", rec.Duration).
			Msg("Recording stopped")
		c.eventBus.Publish(bus.Event{
			Type: bus.EventTypeRecordingStopped,
			Data: map[string]any{
				"session_id":  s.ID,
				"duration_ms": rec.Duration.Milliseconds(),
				"chunks":      rec.Chunks,
			},
		})
		ch <- rec
	}()
	return ch, true
}

// Cancel discards the active session without producing a payload
func (c *CaptureController) Cancel() bool {
	s, stream, done := c.detach()
	if s == nil {
		return false
	}

	_ = stream.Close()
	go func() {
		<-done
		c.mu.Lock()
		s.Chunks = nil
		c.mu.Unlock()
	}()

	c.logger.Info().Str("session", s.ID).Msg("Recording cancelled")
	c.eventBus.Publish(bus.Event{
		Type: bus.EventTypeRecordingCancelled,
		Data: map[string]any{"session_id": s.ID},
	})
	return true
}

// IsRecording reports whether a session is open
func (c *CaptureController) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Elapsed returns how long the current session has been recording
func (c *CaptureController) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	return time.Since(c.session.Started)
}

func (c *CaptureController) detach() (*RecordingSession, io.ReadCloser, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		if c.opening {
			c.aborted = true
		}
		return nil, nil, nil
	}
	s.Active = false
	stream, done := c.stream, c.done
	c.session, c.stream, c.done = nil, nil, nil
	return s, stream, done
}

// finalize drains the session into one WAV payload
func (c *CaptureController) finalize(s *RecordingSession) Recording {
	c.mu.Lock()
	chunks := s.Chunks
	total := s.bytes
	readErr := s.err
	s.Chunks = nil
	c.mu.Unlock()

	pcm := make([]byte, 0, total)
	for _, chunk := range chunks {
		pcm = append(pcm, chunk...)
	}

	rec := Recording{
		SessionID: s.ID,
		Data:      EncodeWAV(pcm, c.config.Format),
		Duration:  c.config.Format.Duration(len(pcm)),
		Chunks:    len(chunks),
		Level:     RMS(pcm),
	}
	switch {
	case len(pcm) == 0 && readErr != nil:
		var perr *PermissionError
		if errors.As(readErr, &perr) {
			rec.Err = readErr
		} else {
			rec.Err = &PermissionError{Device: "default", Err: readErr}
		}
	case len(pcm) == 0:
		rec.Err = ErrEmptyPayload
	}
	return rec
}

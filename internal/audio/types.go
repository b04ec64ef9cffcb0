// Package audio owns the microphone and speaker for a DayMind session.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Common errors
var (
	ErrPermission    = errors.New("microphone unavailable")
	ErrPlayback      = errors.New("audio not playable")
	ErrNotRecording  = errors.New("no active recording")
	ErrInvalidFormat = errors.New("invalid audio format")
	ErrEmptyPayload  = errors.New("recording captured no audio")
	ErrStartAborted  = errors.New("recording stopped before the microphone opened")
)

// PermissionError reports that the microphone was denied or is unavailable
type PermissionError struct {
	Device string
	Err    error
}

func (e *PermissionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("microphone %q unavailable", e.Device)
	}
	return fmt.Sprintf("microphone %q unavailable: %v", e.Device, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPermission) match
func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// PlaybackError reports that an audio resource could not be played
type PlaybackError struct {
	URL string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of %s failed: %v", e.URL, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPlayback) match
func (e *PlaybackError) Is(target error) bool { return target == ErrPlayback }

// Format describes raw PCM audio
type Format struct {
	SampleRate int `json:"sample_rate"` // Default: 16000 Hz
	Channels   int `json:"channels"`    // Default: 1 (mono)
	BitDepth   int `json:"bit_depth"`   // Default: 16
}

// DefaultFormat is 16kHz mono 16-bit, what the transcription backend expects
func DefaultFormat() Format {
	return Format{SampleRate: 16000, Channels: 1, BitDepth: 16}
}

// BytesPerSecond returns the PCM data rate
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// Duration returns how long n bytes of PCM last
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// RecordingSession is the transient state between start and stop
type RecordingSession struct {
	ID      string
	Active  bool
	Chunks  [][]byte
	Started time.Time

	bytes int
	err   error
}

// Recording is a finished capture, delivered once through the stop signal
type Recording struct {
	SessionID string        `json:"session_id"`
	Data      []byte        `json:"-"` // WAV payload
	Duration  time.Duration `json:"duration"`
	Chunks    int           `json:"chunks"`
	Level     float64       `json:"level"` // RMS, 0-1
	Err       error         `json:"-"`
}

// PlaybackState is owned by the PlaybackController
type PlaybackState struct {
	IsPlaying       bool    `json:"is_playing"`
	ProgressPercent float64 `json:"progress_percent"`
	URL             string  `json:"url,omitempty"`
}

// Microphone opens an exclusive capture stream of raw PCM.
// Open returns a *PermissionError when access is denied.
type Microphone interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Player starts playback of one audio resource
type Player interface {
	Play(ctx context.Context, url string) (Track, error)
}

// Track is one live playback stream
type Track interface {
	// Duration reports false while the length is unknown
	Duration() (time.Duration, bool)
	Position() time.Duration
	// Done receives nil on natural completion or the player error
	Done() <-chan error
	// Stop halts playback; safe to call more than once
	Stop()
}

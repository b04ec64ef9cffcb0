package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher downloads an audio resource
type Fetcher interface {
	FetchAudio(ctx context.Context, url string) ([]byte, error)
}

// CommandPlayer downloads the resource to a temp file and plays it with an
// external command (afplay, ffplay, aplay).
type CommandPlayer struct {
	command []string
	fetcher Fetcher
	logger  zerolog.Logger
}

// NewCommandPlayer creates a command player
func NewCommandPlayer(command []string, fetcher Fetcher, logger zerolog.Logger) *CommandPlayer {
	return &CommandPlayer{
		command: command,
		fetcher: fetcher,
		logger:  logger.With().Str("component", "player").Logger(),
	}
}

// Play fetches url and starts the player. ctx bounds the download only.
func (p *CommandPlayer) Play(ctx context.Context, url string) (Track, error) {
	if len(p.command) == 0 {
		return nil, &PlaybackError{URL: url, Err: errors.New("no player command configured")}
	}
	binary, err := exec.LookPath(p.command[0])
	if err != nil {
		return nil, &PlaybackError{URL: url, Err: err}
	}

	data, err := p.fetcher.FetchAudio(ctx, url)
	if err != nil {
		return nil, &PlaybackError{URL: url, Err: err}
	}
	if len(data) == 0 {
		return nil, &PlaybackError{URL: url, Err: ErrEmptyPayload}
	}

	tmpFile, err := os.CreateTemp("", "daymind-*.wav")
	if err != nil {
		return nil, &PlaybackError{URL: url, Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return nil, &PlaybackError{URL: url, Err: fmt.Errorf("write temp file: %w", err)}
	}
	tmpFile.Close()

	args := append(append([]string{}, p.command[1:]...), tmpPath)
	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		os.Remove(tmpPath)
		return nil, &PlaybackError{URL: url, Err: err}
	}

	duration, known := WAVDuration(data)
	p.logger.Debug().
		Str("player", p.command[0]).
		Int("bytes", len(data)).
		Dur("duration", duration).
		Msg("Player started")

	t := &commandTrack{
		cmd:      cmd,
		path:     tmpPath,
		started:  time.Now(),
		duration: duration,
		known:    known,
		done:     make(chan error, 1),
	}
	go t.wait()
	return t, nil
}

type commandTrack struct {
	cmd      *exec.Cmd
	path     string
	started  time.Time
	duration time.Duration
	known    bool
	done     chan error

	stopOnce sync.Once
}

func (t *commandTrack) wait() {
	err := t.cmd.Wait()
	os.Remove(t.path)
	t.done <- err
	close(t.done)
}

func (t *commandTrack) Duration() (time.Duration, bool) { return t.duration, t.known }

func (t *commandTrack) Position() time.Duration { return time.Since(t.started) }

func (t *commandTrack) Done() <-chan error { return t.done }

func (t *commandTrack) Stop() {
	t.stopOnce.Do(func() {
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
	})
}

// NullPlayer accepts every resource and finishes immediately. Used when
// playback is disabled.
type NullPlayer struct{}

// Play returns a track that has already ended
func (NullPlayer) Play(ctx context.Context, url string) (Track, error) {
	t := &nullTrack{done: make(chan error, 1)}
	t.done <- nil
	close(t.done)
	return t, nil
}

type nullTrack struct{ done chan error }

func (t *nullTrack) Duration() (time.Duration, bool) { return 0, false }
func (t *nullTrack) Position() time.Duration         { return 0 }
func (t *nullTrack) Done() <-chan error              { return t.done }
func (t *nullTrack) Stop()                           {}

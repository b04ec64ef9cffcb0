package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/daymind/internal/bus"
)

// Stop reasons carried on playback.stopped events
const (
	StopReasonEnded    = "ended"
	StopReasonStopped  = "stopped"
	StopReasonReplaced = "replaced"
)

// PlaybackController owns the single audio output channel.
// Play replaces whatever is live; progress is reported as 0-100.
type PlaybackController struct {
	player   Player
	interval time.Duration
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu         sync.Mutex
	state      PlaybackState
	track      Track
	generation uint64
	onProgress func(PlaybackState)
}

// NewPlaybackController creates a playback controller. interval is how
// often progress is sampled while playing.
func NewPlaybackController(player Player, interval time.Duration, eventBus *bus.EventBus, logger zerolog.Logger) *PlaybackController {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &PlaybackController{
		player:   player,
		interval: interval,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "playback").Logger(),
	}
}

// OnProgress registers a callback for every state change, including the
// reset to zero on stop or natural end
func (p *PlaybackController) OnProgress(fn func(PlaybackState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onProgress = fn
}

// State returns a snapshot of the playback state
func (p *PlaybackController) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Play starts url, replacing the current stream. Failures leave the
// controller idle and are returned as a *PlaybackError.
func (p *PlaybackController) Play(ctx context.Context, url string) error {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	old := p.track
	wasPlaying := p.state.IsPlaying
	p.track = nil
	p.state = PlaybackState{}
	if wasPlaying {
		p.publishStopped(StopReasonReplaced)
	}
	p.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	track, err := p.player.Play(ctx, url)
	if err != nil {
		var perr *PlaybackError
		if !errors.As(err, &perr) {
			err = &PlaybackError{URL: url, Err: err}
		}
		p.logger.Warn().Err(err).Str("url", url).Msg("Playback failed")
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypePlaybackFailed,
			Data: map[string]any{"url": url, "error": err.Error()},
		})
		return err
	}

	p.mu.Lock()
	if p.generation != gen {
		// stopped or replaced while loading
		p.mu.Unlock()
		track.Stop()
		return nil
	}
	p.track = track
	p.state = PlaybackState{IsPlaying: true, URL: url}
	state := p.state
	cb := p.onProgress
	p.eventBus.Publish(bus.Event{
		Type: bus.EventTypePlaybackStarted,
		Data: map[string]any{"url": url},
	})
	p.mu.Unlock()

	p.logger.Debug().Str("url", url).Msg("Playback started")
	if cb != nil {
		cb(state)
	}

	go p.watch(gen, track)
	return nil
}

// Stop halts playback and resets progress to 0. No-op when idle.
func (p *PlaybackController) Stop() {
	p.mu.Lock()
	track := p.track
	wasPlaying := p.state.IsPlaying
	p.generation++
	p.track = nil
	p.state = PlaybackState{}
	cb := p.onProgress
	if wasPlaying {
		// published under the lock so no progress event can follow it
		p.publishStopped(StopReasonStopped)
	}
	p.mu.Unlock()

	if track != nil {
		track.Stop()
	}
	if !wasPlaying {
		return
	}

	p.logger.Debug().Msg("Playback stopped")
	if cb != nil {
		cb(PlaybackState{})
	}
}

func (p *PlaybackController) watch(gen uint64, track Track) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-track.Done():
			p.finish(gen, err)
			return
		case <-ticker.C:
			duration, ok := track.Duration()
			if !ok {
				continue
			}
			percent, ok := ProgressPercent(track.Position(), duration)
			if !ok {
				continue
			}

			p.mu.Lock()
			if p.generation != gen {
				p.mu.Unlock()
				return
			}
			p.state.ProgressPercent = percent
			state := p.state
			cb := p.onProgress
			p.eventBus.Publish(bus.Event{
				Type: bus.EventTypePlaybackProgress,
				Data: map[string]any{"percent": percent},
			})
			p.mu.Unlock()

			if cb != nil {
				cb(state)
			}
		}
	}
}

// finish resets state on natural end exactly like Stop does
func (p *PlaybackController) finish(gen uint64, err error) {
	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		return
	}
	p.track = nil
	p.state = PlaybackState{}
	cb := p.onProgress
	p.publishStopped(StopReasonEnded)
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn().Err(err).Msg("Player exited with error")
	}
	if cb != nil {
		cb(PlaybackState{})
	}
}

func (p *PlaybackController) publishStopped(reason string) {
	p.eventBus.Publish(bus.Event{
		Type: bus.EventTypePlaybackStopped,
		Data: map[string]any{"reason": reason},
	})
}

package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/daymind/internal/bus"
)

type fakeTrack struct {
	mu       sync.Mutex
	duration time.Duration
	known    bool
	position time.Duration
	done     chan error
	once     sync.Once
	stopped  atomic.Bool
}

func newFakeTrack(d time.Duration, known bool) *fakeTrack {
	return &fakeTrack{duration: d, known: known, done: make(chan error, 1)}
}

func (t *fakeTrack) Duration() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration, t.known
}

func (t *fakeTrack) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

func (t *fakeTrack) setPosition(d time.Duration) {
	t.mu.Lock()
	t.position = d
	t.mu.Unlock()
}

func (t *fakeTrack) Done() <-chan error { return t.done }

func (t *fakeTrack) end() {
	t.once.Do(func() { t.done <- nil; close(t.done) })
}

func (t *fakeTrack) Stop() {
	t.stopped.Store(true)
	t.once.Do(func() { t.done <- errors.New("killed"); close(t.done) })
}

type fakePlayer struct {
	mu     sync.Mutex
	tracks []*fakeTrack
	urls   []string
	err    error
	next   func() *fakeTrack
}

func (p *fakePlayer) Play(ctx context.Context, url string) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
	if p.err != nil {
		return nil, p.err
	}
	var tr *fakeTrack
	if p.next != nil {
		tr = p.next()
	} else {
		tr = newFakeTrack(10*time.Second, true)
	}
	p.tracks = append(p.tracks, tr)
	return tr, nil
}

func (p *fakePlayer) last() *fakeTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracks[len(p.tracks)-1]
}

func newTestPlayback(player Player, b *bus.EventBus) *PlaybackController {
	return NewPlaybackController(player, 5*time.Millisecond, b, zerolog.Nop())
}

func TestPlaybackStopWhenIdleIsNoop(t *testing.T) {
	b := bus.NewEventBus()
	var stopped atomic.Int32
	b.Subscribe(bus.EventTypePlaybackStopped, func(bus.Event) { stopped.Add(1) })

	p := newTestPlayback(&fakePlayer{}, b)
	p.Stop()
	p.Stop()

	assert.Equal(t, PlaybackState{}, p.State())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, stopped.Load())
}

func TestPlaybackProgressAndStop(t *testing.T) {
	player := &fakePlayer{}
	p := newTestPlayback(player, nil)

	require.NoError(t, p.Play(context.Background(), "http://x/audio?t=1"))
	state := p.State()
	assert.True(t, state.IsPlaying)
	assert.Equal(t, "http://x/audio?t=1", state.URL)

	player.last().setPosition(5 * time.Second)
	assert.Eventually(t, func() bool {
		return p.State().ProgressPercent == 50
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	assert.Equal(t, PlaybackState{}, p.State())
	assert.True(t, player.last().stopped.Load())
}

func TestPlaybackProgressClamped(t *testing.T) {
	player := &fakePlayer{}
	p := newTestPlayback(player, nil)

	var maxSeen atomic.Value
	maxSeen.Store(0.0)
	p.OnProgress(func(s PlaybackState) {
		if s.ProgressPercent > maxSeen.Load().(float64) {
			maxSeen.Store(s.ProgressPercent)
		}
	})

	require.NoError(t, p.Play(context.Background(), "u"))
	player.last().setPosition(10*time.Second + 300*time.Millisecond)

	assert.Eventually(t, func() bool {
		return p.State().ProgressPercent == 100
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, maxSeen.Load().(float64), 100.0)
	p.Stop()
}

func TestPlaybackUnknownDurationYieldsNoProgress(t *testing.T) {
	player := &fakePlayer{next: func() *fakeTrack { return newFakeTrack(0, false) }}
	p := newTestPlayback(player, nil)

	require.NoError(t, p.Play(context.Background(), "u"))
	player.last().setPosition(3 * time.Second)
	time.Sleep(30 * time.Millisecond)

	state := p.State()
	assert.True(t, state.IsPlaying)
	assert.Zero(t, state.ProgressPercent)
	p.Stop()
}

func TestPlaybackNaturalEndResetsLikeStop(t *testing.T) {
	b := bus.NewEventBus()
	reasons := make(chan string, 4)
	b.Subscribe(bus.EventTypePlaybackStopped, func(e bus.Event) { reasons <- e.Data["reason"].(string) })

	player := &fakePlayer{}
	p := newTestPlayback(player, b)

	require.NoError(t, p.Play(context.Background(), "u"))
	player.last().setPosition(9 * time.Second)
	assert.Eventually(t, func() bool { return p.State().ProgressPercent > 0 }, time.Second, 5*time.Millisecond)

	player.last().end()
	assert.Eventually(t, func() bool { return !p.State().IsPlaying }, time.Second, 5*time.Millisecond)
	assert.Equal(t, PlaybackState{}, p.State())

	select {
	case r := <-reasons:
		assert.Equal(t, StopReasonEnded, r)
	case <-time.After(time.Second):
		t.Fatal("no stop event")
	}
}

func TestPlaybackReplacesCurrentStream(t *testing.T) {
	player := &fakePlayer{}
	p := newTestPlayback(player, nil)

	require.NoError(t, p.Play(context.Background(), "first"))
	first := player.last()
	require.NoError(t, p.Play(context.Background(), "second"))

	assert.True(t, first.stopped.Load())
	assert.Equal(t, "second", p.State().URL)
	assert.True(t, p.State().IsPlaying)

	// the replaced track ending must not touch the new state
	time.Sleep(20 * time.Millisecond)
	assert.True(t, p.State().IsPlaying)
	p.Stop()
}

func TestPlaybackFailureLeavesIdle(t *testing.T) {
	b := bus.NewEventBus()
	var failed atomic.Bool
	b.Subscribe(bus.EventTypePlaybackFailed, func(bus.Event) { failed.Store(true) })

	p := newTestPlayback(&fakePlayer{err: errors.New("unsupported codec")}, b)
	err := p.Play(context.Background(), "u")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlayback)
	var perr *PlaybackError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "u", perr.URL)
	assert.False(t, p.State().IsPlaying)
	assert.Eventually(t, failed.Load, time.Second, 5*time.Millisecond)
}

func TestNullPlayerEndsImmediately(t *testing.T) {
	p := newTestPlayback(NullPlayer{}, nil)
	require.NoError(t, p.Play(context.Background(), "u"))
	assert.Eventually(t, func() bool { return !p.State().IsPlaying }, time.Second, 5*time.Millisecond)
}

func TestCommandPlayerMissingBinary(t *testing.T) {
	player := NewCommandPlayer([]string{"daymind-no-such-player"}, nil, zerolog.Nop())
	_, err := player.Play(context.Background(), "u")
	assert.ErrorIs(t, err, ErrPlayback)
}

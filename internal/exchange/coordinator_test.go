package exchange

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/daymind/internal/api"
	"github.com/normanking/daymind/internal/conversation"
	"github.com/normanking/daymind/internal/testutil"
)

type recordingPlayer struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (p *recordingPlayer) Play(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
	return p.err
}

func (p *recordingPlayer) played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}

type countingTasks struct {
	calls atomic.Int32
	err   error
}

func (t *countingTasks) Refresh(ctx context.Context) error {
	t.calls.Add(1)
	return t.err
}

type fixture struct {
	backend *testutil.MockBackend
	client  *api.Client
	store   *conversation.Store
	player  *recordingPlayer
	tasks   *countingTasks
	coord   *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := testutil.NewMockBackend(t)
	client := api.NewClient(&api.ClientConfig{BaseURL: backend.URL(), Timeout: 5 * time.Second}, zerolog.Nop())
	store := conversation.NewStore(nil)
	player := &recordingPlayer{}
	tasks := &countingTasks{}
	return &fixture{
		backend: backend,
		client:  client,
		store:   store,
		player:  player,
		tasks:   tasks,
		coord:   NewCoordinator(client, store, player, tasks, nil, zerolog.Nop()),
	}
}

func TestSubmitTextRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.backend.SetChatReply(testutil.ChatReply{Response: "Here's a plan", AudioAvailable: false})

	result, err := f.coord.SubmitText(context.Background(), "Plan my day", EmotionCalm)
	require.NoError(t, err)
	require.NoError(t, result.Err)

	entries := f.store.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, conversation.RoleUser, entries[1].Role)
	assert.Equal(t, "Plan my day", entries[1].Content)
	assert.False(t, entries[1].IsVoice)
	assert.Equal(t, conversation.RoleAssistant, entries[2].Role)
	assert.Equal(t, "Here's a plan", entries[2].Content)
	assert.False(t, entries[2].IsError)

	assert.Empty(t, f.player.played(), "playback must not be triggered")
	assert.Equal(t, int32(1), f.tasks.calls.Load())
	assert.Equal(t, map[string]string{"message": "Plan my day", "emotion": "calm"}, f.backend.LastChat())
	assert.Equal(t, StateIdle, f.coord.State())
	assert.False(t, f.store.IsPending())
}

func TestSubmitVoiceRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.backend.SetVoiceReply(testutil.VoiceReply{Transcription: "buy milk", Response: "Added to your list", AudioAvailable: true})

	audio := testutil.GenerateTestAudio(t, 200*time.Millisecond)
	result, err := f.coord.SubmitVoice(context.Background(), audio)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.True(t, result.Played)
	assert.Equal(t, "buy milk", result.Transcription)

	entries := f.store.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "buy milk", entries[1].Content)
	assert.True(t, entries[1].IsVoice)
	assert.Equal(t, "Added to your list", entries[2].Content)
	assert.True(t, entries[2].AudioAvailable)

	played := f.player.played()
	require.Len(t, played, 1, "exactly one play per exchange")
	assert.True(t, strings.HasPrefix(played[0], f.client.BaseURL()+"/audio?t="))
	assert.Equal(t, audio, f.backend.LastVoiceUpload())
	assert.Equal(t, int32(1), f.tasks.calls.Load())
}

func TestEveryPlayGetsAFreshURL(t *testing.T) {
	f := newFixture(t)
	f.backend.SetChatReply(testutil.ChatReply{Response: "ok", AudioAvailable: true})

	for i := 0; i < 3; i++ {
		_, err := f.coord.SubmitText(context.Background(), "again", EmotionFriendly)
		require.NoError(t, err)
	}

	played := f.player.played()
	require.Len(t, played, 3)
	assert.NotEqual(t, played[0], played[1])
	assert.NotEqual(t, played[1], played[2])
}

func TestSubmitTextNetworkFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.FailPath("/chat", http.StatusBadGateway)

	result, err := f.coord.SubmitText(context.Background(), "Plan my day", EmotionFriendly)
	require.NoError(t, err)
	require.Error(t, result.Err)
	assert.True(t, api.IsNetworkError(result.Err))

	entries := f.store.Entries()
	require.Len(t, entries, 3, "the typed message and one error entry are appended")
	assert.Equal(t, conversation.RoleUser, entries[1].Role)
	assert.Equal(t, "Plan my day", entries[1].Content)
	assert.False(t, entries[1].IsError)
	assert.True(t, entries[2].IsError)
	assert.Equal(t, conversation.RoleAssistant, entries[2].Role)
	assert.Equal(t, TextApology, entries[2].Content)

	errorEntries := 0
	for _, e := range entries {
		if e.IsError {
			errorEntries++
		}
	}
	assert.Equal(t, 1, errorEntries)

	assert.Equal(t, StateIdle, f.coord.State())
	assert.False(t, f.store.IsPending())
	assert.Zero(t, f.tasks.calls.Load(), "refresh fires on success only")

	// the gate is open again
	f.backend.FailPath("/chat", 0)
	result, err = f.coord.SubmitText(context.Background(), "Plan my day", EmotionFriendly)
	require.NoError(t, err)
	assert.NoError(t, result.Err)
	assert.Equal(t, 5, f.store.Len())
}

func TestSubmitVoiceFailureUsesVoiceApology(t *testing.T) {
	f := newFixture(t)
	f.backend.FailPath("/voice", http.StatusInternalServerError)

	result, err := f.coord.SubmitVoice(context.Background(), testutil.GenerateTestAudio(t, 10*time.Millisecond))
	require.NoError(t, err)
	require.Error(t, result.Err)

	last := f.store.Last()
	assert.True(t, last.IsError)
	assert.Equal(t, VoiceApology, last.Content)
	assert.Equal(t, 2, f.store.Len())
}

func TestMalformedResponseIsAFailure(t *testing.T) {
	for _, body := range []string{`["not", "an", "object"]`, `{}`, `null`, `{"reply":"x"}`} {
		t.Run(body, func(t *testing.T) {
			f := newFixture(t)
			f.backend.RawReply("/chat", body)

			result, err := f.coord.SubmitText(context.Background(), "hello", EmotionFriendly)
			require.NoError(t, err)
			assert.ErrorIs(t, result.Err, api.ErrMalformedResponse)

			last := f.store.Last()
			assert.True(t, last.IsError)
			assert.Equal(t, TextApology, last.Content)
			assert.Zero(t, f.tasks.calls.Load())
			assert.Equal(t, StateIdle, f.coord.State())
		})
	}
}

func TestVoiceReplyWithoutTranscriptionIsAFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.RawReply("/voice", `{"response":"ok"}`)

	result, err := f.coord.SubmitVoice(context.Background(), testutil.GenerateTestAudio(t, 10*time.Millisecond))
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, api.ErrMalformedResponse)

	for _, e := range f.store.Entries() {
		assert.False(t, e.IsVoice, "no voice entry is recorded")
	}
	last := f.store.Last()
	assert.True(t, last.IsError)
	assert.Equal(t, VoiceApology, last.Content)
	assert.Zero(t, f.tasks.calls.Load())
}

func TestSubmitWhileSendingIsRejected(t *testing.T) {
	f := newFixture(t)
	release := f.backend.Hold("/chat")
	defer release()

	done := make(chan *Result, 1)
	go func() {
		r, _ := f.coord.SubmitText(context.Background(), "first", EmotionFriendly)
		done <- r
	}()

	require.Eventually(t, func() bool { return f.coord.State() == StateSending }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, f.store.IsPending())
	p, _ := f.store.PendingPlaceholder()
	assert.Equal(t, "first", p.Echo)

	_, err := f.coord.SubmitText(context.Background(), "second", EmotionFriendly)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.coord.SubmitVoice(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, f.store.Len(), "rejected submissions do not touch the store")

	release()
	select {
	case r := <-done:
		require.NotNil(t, r)
		assert.NoError(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("first exchange never completed")
	}
	assert.Equal(t, 3, f.store.Len())
	assert.Equal(t, 1, f.backend.Calls("/chat"))
}

func TestAtMostOneSendingUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	f.backend.Delay("/chat", 20*time.Millisecond)

	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.SubmitText(context.Background(), "hi", EmotionFriendly)
			if errors.Is(err, ErrBusy) {
				rejected.Add(1)
			} else if err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), accepted.Load()+rejected.Load())
	assert.Equal(t, int(accepted.Load()), f.backend.Calls("/chat"))
	assert.Equal(t, 1+2*int(accepted.Load()), f.store.Len())
}

func TestStoreGrowsByTwoPerExchange(t *testing.T) {
	f := newFixture(t)

	prev := f.store.Len()
	for n := 1; n <= 5; n++ {
		_, err := f.coord.SubmitText(context.Background(), "step", EmotionSerious)
		require.NoError(t, err)
		assert.Equal(t, 1+2*n, f.store.Len())
		assert.GreaterOrEqual(t, f.store.Len(), prev)
		prev = f.store.Len()
	}
}

func TestSubmitTextRejectsEmpty(t *testing.T) {
	f := newFixture(t)

	for _, msg := range []string{"", "   ", "\n\t "} {
		_, err := f.coord.SubmitText(context.Background(), msg, EmotionFriendly)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Equal(t, 1, f.store.Len())
	assert.Zero(t, f.backend.Calls("/chat"))
	assert.Equal(t, StateIdle, f.coord.State())
}

func TestSubmitTextEmotionHandling(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.SubmitText(context.Background(), "hi", "grumpy")
	assert.ErrorIs(t, err, ErrInvalidEmotion)

	_, err = f.coord.SubmitText(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "friendly", f.backend.LastChat()["emotion"])
}

func TestPlaybackAndRefreshFailuresAreSilent(t *testing.T) {
	f := newFixture(t)
	f.player.err = errors.New("unplayable")
	f.tasks.err = errors.New("tasks down")
	f.backend.SetChatReply(testutil.ChatReply{Response: "ok", AudioAvailable: true})

	result, err := f.coord.SubmitText(context.Background(), "hi", EmotionFriendly)
	require.NoError(t, err)
	assert.NoError(t, result.Err)
	assert.False(t, result.Played)
	assert.Equal(t, 3, f.store.Len())
	assert.False(t, f.store.Last().IsError)
	assert.Equal(t, StateIdle, f.coord.State())
}

func TestNilCollaborators(t *testing.T) {
	backend := testutil.NewMockBackend(t)
	backend.SetChatReply(testutil.ChatReply{Response: "ok", AudioAvailable: true})
	client := api.NewClient(&api.ClientConfig{BaseURL: backend.URL(), Timeout: time.Second}, zerolog.Nop())
	coord := NewCoordinator(client, conversation.NewStore(nil), nil, nil, nil, zerolog.Nop())

	result, err := coord.SubmitText(context.Background(), "hi", EmotionFriendly)
	require.NoError(t, err)
	assert.NoError(t, result.Err)
}

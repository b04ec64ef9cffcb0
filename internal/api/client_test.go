package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/daymind/internal/testutil"
)

func newTestClient(t *testing.T) (*Client, *testutil.MockBackend) {
	t.Helper()
	backend := testutil.NewMockBackend(t)
	client := NewClient(&ClientConfig{BaseURL: backend.URL() + "/", Timeout: 5 * time.Second}, zerolog.Nop())
	return client, backend
}

func TestChat(t *testing.T) {
	client, backend := newTestClient(t)
	backend.SetChatReply(testutil.ChatReply{Response: "Here's a plan", AudioAvailable: true})

	resp, err := client.Chat(context.Background(), ChatRequest{Message: "Plan my day", Emotion: "calm"})
	require.NoError(t, err)

	assert.Equal(t, "Here's a plan", resp.Response)
	assert.True(t, resp.AudioAvailable)
	assert.Equal(t, map[string]string{"message": "Plan my day", "emotion": "calm"}, backend.LastChat())
}

func TestChatErrorStatus(t *testing.T) {
	client, backend := newTestClient(t)
	backend.FailPath("/chat", http.StatusInternalServerError)

	_, err := client.Chat(context.Background(), ChatRequest{Message: "hi", Emotion: "friendly"})
	require.Error(t, err)

	var nerr *NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "chat", nerr.Op)
	assert.Equal(t, http.StatusInternalServerError, nerr.StatusCode)
	assert.Contains(t, nerr.Message, "mock failure")
	assert.True(t, IsNetworkError(err))
}

func TestChatMalformedBody(t *testing.T) {
	client, backend := newTestClient(t)
	backend.RawReply("/chat", "{not json")

	_, err := client.Chat(context.Background(), ChatRequest{Message: "hi", Emotion: "friendly"})
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestResponsesMissingFieldsAreMalformed(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"chat empty object", "/chat", `{}`},
		{"chat null", "/chat", `null`},
		{"chat wrong key", "/chat", `{"reply":"x"}`},
		{"chat empty response", "/chat", `{"response":"","audio_available":true}`},
		{"voice without transcription", "/voice", `{"response":"ok"}`},
		{"voice without response", "/voice", `{"transcription":"buy milk"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, backend := newTestClient(t)
			backend.RawReply(tt.path, tt.body)

			var err error
			if tt.path == "/chat" {
				_, err = client.Chat(context.Background(), ChatRequest{Message: "hi", Emotion: "friendly"})
			} else {
				_, err = client.Voice(context.Background(), []byte("RIFF"))
			}
			require.Error(t, err)
			assert.True(t, IsNetworkError(err))
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestChatTransportFailure(t *testing.T) {
	client := NewClient(&ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, zerolog.Nop())

	_, err := client.Chat(context.Background(), ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestVoiceUploadsMultipart(t *testing.T) {
	client, backend := newTestClient(t)
	backend.SetVoiceReply(testutil.VoiceReply{Transcription: "buy milk", Response: "Added to your list", AudioAvailable: true})

	audio := testutil.GenerateTestAudio(t, 50*time.Millisecond)
	resp, err := client.Voice(context.Background(), audio)
	require.NoError(t, err)

	assert.Equal(t, "buy milk", resp.Transcription)
	assert.Equal(t, "Added to your list", resp.Response)
	assert.True(t, resp.AudioAvailable)
	assert.Equal(t, audio, backend.LastVoiceUpload())
}

func TestAudioURLIsUniquePerCall(t *testing.T) {
	client, _ := newTestClient(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		u := client.AudioURL()
		assert.True(t, strings.HasPrefix(u, client.BaseURL()+"/audio?t="))
		assert.False(t, seen[u], "duplicate audio url %s", u)
		seen[u] = true
	}
}

func TestFetchAudio(t *testing.T) {
	client, backend := newTestClient(t)

	u := client.AudioURL()
	data, err := client.FetchAudio(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))

	queries := backend.AudioQueries()
	require.Len(t, queries, 1)
	assert.True(t, strings.HasSuffix(u, queries[0]))
}

func TestTasksLifecycle(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	tasks, err := client.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.NotNil(t, tasks)

	backend.SetTasks("Call the dentist about Friday", "Draft the quarterly report")
	tasks, err = client.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Call the dentist about Friday", tasks[0].Task)
	assert.False(t, tasks[0].Created.IsZero())

	require.NoError(t, client.CompleteTask(ctx, 1))
	assert.True(t, backend.Tasks()[1].Completed)

	err = client.CompleteTask(ctx, 7)
	var nerr *NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, http.StatusBadRequest, nerr.StatusCode)
	assert.Equal(t, "Invalid task index", nerr.Message)

	require.NoError(t, client.ClearTasks(ctx))
	assert.Empty(t, backend.Tasks())
}

func TestJournalEndpoints(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()
	backend.AddJournalEntry("Went for a long run", "good", time.Now().Add(-time.Hour))

	saved, err := client.CreateJournalEntry(ctx, JournalEntryRequest{Entry: "Felt calm after the walk", Mood: "good"})
	require.NoError(t, err)
	assert.Equal(t, 2, saved.ID)
	assert.Equal(t, "Felt calm after the walk", saved.Entry)
	assert.True(t, saved.AudioAvailable)

	entries, err := client.Journal(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	results, err := client.SearchJournal(ctx, "RUN")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Went for a long run", results[0].Entry)

	summary, err := client.JournalSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Stats.TotalEntries)

	prompts, err := client.JournalPrompts(ctx)
	require.NoError(t, err)
	assert.Len(t, prompts, 3)
}

func TestTimestampLayouts(t *testing.T) {
	var ts Timestamp
	require.NoError(t, ts.UnmarshalJSON([]byte(`"2026-10-17T09:30:00.123456"`)))
	assert.Equal(t, 9, ts.Hour())

	require.NoError(t, ts.UnmarshalJSON([]byte(`"2026-10-17T09:30:00Z"`)))
	assert.Equal(t, time.UTC, ts.Location())

	require.NoError(t, ts.UnmarshalJSON([]byte(`null`)))
	assert.True(t, ts.IsZero())

	assert.Error(t, ts.UnmarshalJSON([]byte(`"yesterday"`)))
}

package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	all := []State{StateIdle, StateSending, StateSuccess, StateFailed}
	legal := map[[2]State]bool{
		{StateIdle, StateSending}:    true,
		{StateSending, StateSuccess}: true,
		{StateSending, StateFailed}:  true,
		{StateSuccess, StateIdle}:    true,
		{StateFailed, StateIdle}:     true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]State{from, to}], from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestGateRejectsDoubleAcquire(t *testing.T) {
	var moves []string
	g := NewGate(func(from, to State) { moves = append(moves, from.String()+">"+to.String()) })

	require.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire())
	assert.Equal(t, StateSending, g.State())

	assert.ErrorIs(t, g.Transition(StateIdle), ErrInvalidTransition)
	require.NoError(t, g.Transition(StateFailed))
	require.NoError(t, g.Transition(StateIdle))
	assert.True(t, g.TryAcquire())

	assert.Equal(t, []string{"idle>sending", "sending>failed", "failed>idle", "idle>sending"}, moves)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestParseEmotion(t *testing.T) {
	e, err := ParseEmotion(" Calm ")
	require.NoError(t, err)
	assert.Equal(t, EmotionCalm, e)

	e, err = ParseEmotion("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEmotion, e)

	_, err = ParseEmotion("angry")
	assert.ErrorIs(t, err, ErrInvalidEmotion)

	assert.Len(t, Emotions(), 5)
	for _, e := range Emotions() {
		assert.True(t, e.Valid())
	}
}

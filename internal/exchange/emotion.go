package exchange

import (
	"fmt"
	"strings"
)

// Emotion selects the voice style the backend synthesizes replies with.
// It is passed through untouched.
type Emotion string

const (
	EmotionFriendly   Emotion = "friendly"
	EmotionExcited    Emotion = "excited"
	EmotionCalm       Emotion = "calm"
	EmotionSerious    Emotion = "serious"
	EmotionEmpathetic Emotion = "empathetic"
)

// DefaultEmotion is used when none is chosen
const DefaultEmotion = EmotionFriendly

// Emotions returns every selectable emotion in display order
func Emotions() []Emotion {
	return []Emotion{EmotionFriendly, EmotionExcited, EmotionCalm, EmotionSerious, EmotionEmpathetic}
}

// Valid reports whether e is one of the fixed set
func (e Emotion) Valid() bool {
	for _, known := range Emotions() {
		if e == known {
			return true
		}
	}
	return false
}

// ParseEmotion parses a case-insensitive label; empty yields the default
func ParseEmotion(s string) (Emotion, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultEmotion, nil
	}
	e := Emotion(s)
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmotion, s)
	}
	return e, nil
}

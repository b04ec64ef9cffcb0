package exchange

import "errors"

var (
	ErrBusy              = errors.New("an exchange is already in flight")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrInvalidEmotion    = errors.New("unknown emotion")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// User-facing apologies appended when an exchange fails
const (
	TextApology  = "Sorry, I'm having trouble connecting. Please try again."
	VoiceApology = "Sorry, I had trouble understanding. Please try again."
)

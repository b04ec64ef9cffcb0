package exchange

import (
	"fmt"
	"sync"
)

// State is the coordinator's position in an exchange
type State int

const (
	StateIdle State = iota
	StateSending
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions enumerates every legal move; anything else is rejected
var transitions = map[State][]State{
	StateIdle:    {StateSending},
	StateSending: {StateSuccess, StateFailed},
	StateSuccess: {StateIdle},
	StateFailed:  {StateIdle},
}

// CanTransition reports whether to is reachable from s in one step
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Gate serializes exchanges: only one may leave Idle at a time
type Gate struct {
	mu       sync.Mutex
	state    State
	onChange func(from, to State)
}

// NewGate returns an idle gate. onChange, if set, runs after every move.
func NewGate(onChange func(from, to State)) *Gate {
	return &Gate{onChange: onChange}
}

// State returns the current state
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// TryAcquire moves Idle to Sending, reporting false if already busy
func (g *Gate) TryAcquire() bool {
	return g.Transition(StateSending) == nil
}

// Transition moves to the given state if the move is legal
func (g *Gate) Transition(to State) error {
	g.mu.Lock()
	from := g.state
	if !from.CanTransition(to) {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	g.state = to
	cb := g.onChange
	g.mu.Unlock()

	if cb != nil {
		cb(from, to)
	}
	return nil
}

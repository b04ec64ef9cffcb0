// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
	"time"
)

// EventType identifies different event types
type EventType string

// Event types for DayMind
const (
	// Exchange events
	EventTypeExchangeStarted   EventType = "exchange.started"
	EventTypeExchangeCompleted EventType = "exchange.completed"
	EventTypeExchangeFailed    EventType = "exchange.failed"
	EventTypeStateChanged      EventType = "exchange.state_changed"

	// Conversation events
	EventTypeMessageAppended EventType = "conversation.message_appended"
	EventTypePendingChanged  EventType = "conversation.pending_changed"

	// Capture events
	EventTypeRecordingStarted   EventType = "audio.recording_started"
	EventTypeRecordingStopped   EventType = "audio.recording_stopped"
	EventTypeRecordingCancelled EventType = "audio.recording_cancelled"
	EventTypeRecordingFailed    EventType = "audio.recording_failed"

	// Playback events
	EventTypePlaybackStarted  EventType = "playback.started"
	EventTypePlaybackProgress EventType = "playback.progress"
	EventTypePlaybackStopped  EventType = "playback.stopped"
	EventTypePlaybackFailed   EventType = "playback.failed"

	// Task events
	EventTypeTasksRefreshed EventType = "tasks.refreshed"
	EventTypeTasksError     EventType = "tasks.error"

	// Journal events
	EventTypeJournalSaved EventType = "journal.saved"

	// Config events
	EventTypeConfigReloaded EventType = "config.reloaded"

	// Log events, one per recorded log line
	EventTypeLogEntry EventType = "log.entry"
)

// AllEventTypes lists every event type, used by subscribers that forward everything
var AllEventTypes = []EventType{
	EventTypeExchangeStarted,
	EventTypeExchangeCompleted,
	EventTypeExchangeFailed,
	EventTypeStateChanged,
	EventTypeMessageAppended,
	EventTypePendingChanged,
	EventTypeRecordingStarted,
	EventTypeRecordingStopped,
	EventTypeRecordingCancelled,
	EventTypeRecordingFailed,
	EventTypePlaybackStarted,
	EventTypePlaybackProgress,
	EventTypePlaybackStopped,
	EventTypePlaybackFailed,
	EventTypeTasksRefreshed,
	EventTypeTasksError,
	EventTypeJournalSaved,
	EventTypeConfigReloaded,
	EventTypeLogEntry,
}

// Event represents a bus event
type Event struct {
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler is a function that handles events
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
	queue   *orderedQueue // nil for plain subscriptions
}

// orderedQueue delivers events to one handler, one at a time, in the order
// they were published. push never blocks the publisher.
type orderedQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	closed  bool
}

func newOrderedQueue(handler Handler) *orderedQueue {
	q := &orderedQueue{}
	q.cond = sync.NewCond(&q.mu)
	go q.drain(handler)
	return q
}

func (q *orderedQueue) push(event Event) {
	q.mu.Lock()
	if !q.closed {
		q.pending = append(q.pending, event)
		q.cond.Signal()
	}
	q.mu.Unlock()
}

func (q *orderedQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	q.cond.Signal()
	q.mu.Unlock()
}

func (q *orderedQueue) drain(handler Handler) {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		event := q.pending[0]
		q.pending[0] = Event{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		handler(event)
	}
}

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   uint64
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe adds a handler for an event type. The returned func removes it.
func (b *EventBus) Subscribe(eventType EventType, handler Handler) func() {
	return b.SubscribeMultiple([]EventType{eventType}, handler)
}

// SubscribeMultiple adds a handler for multiple event types. Each event is
// delivered on its own goroutine, so handlers see no fixed order.
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) func() {
	return b.subscribe(eventTypes, handler, nil)
}

// SubscribeOrdered adds a handler that receives events one at a time, in
// publish order, across all of eventTypes. Use it for observers that mirror
// state, where a late progress event would undo a stop.
func (b *EventBus) SubscribeOrdered(eventTypes []EventType, handler Handler) func() {
	return b.subscribe(eventTypes, handler, newOrderedQueue(handler))
}

func (b *EventBus) subscribe(eventTypes []EventType, handler Handler, queue *orderedQueue) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, et := range eventTypes {
		b.handlers[et] = append(b.handlers[et], subscription{id: id, handler: handler, queue: queue})
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(id, eventTypes)
			if queue != nil {
				queue.close()
			}
		})
	}
}

func (b *EventBus) unsubscribe(id uint64, eventTypes []EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, et := range eventTypes {
		subs := b.handlers[et]
		kept := subs[:0]
		for _, s := range subs {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.handlers, et)
		} else {
			b.handlers[et] = kept
		}
	}
}

func (b *EventBus) snapshot(event *Event) []subscription {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := b.handlers[event.Type]
	out := make([]subscription, len(subs))
	copy(out, subs)
	return out
}

// Publish sends an event to all subscribed handlers. A nil bus drops it.
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}
	for _, sub := range b.snapshot(&event) {
		if sub.queue != nil {
			sub.queue.push(event)
			continue
		}
		// Call handlers in goroutines to avoid blocking
		go sub.handler(event)
	}
}

// PublishSync sends an event and waits for the unordered handlers to
// complete. Ordered subscribers get it queued behind earlier events.
func (b *EventBus) PublishSync(event Event) {
	if b == nil {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range b.snapshot(&event) {
		if sub.queue != nil {
			sub.queue.push(event)
			continue
		}
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(sub.handler)
	}
	wg.Wait()
}

// HandlerCount returns the number of handlers registered for an event type
func (b *EventBus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.handlers {
		for _, s := range subs {
			if s.queue != nil {
				s.queue.close()
			}
		}
	}
	b.handlers = make(map[EventType][]subscription)
}

// Package tasks keeps a client-side copy of the backend's task list.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/daymind/internal/api"
	"github.com/normanking/daymind/internal/bus"
	"github.com/normanking/daymind/internal/metrics"
)

// Source is the backend task API
type Source interface {
	Tasks(ctx context.Context) ([]api.Task, error)
	CompleteTask(ctx context.Context, index int) error
	ClearTasks(ctx context.Context) error
}

// Counts summarizes the list for the sidebar header
type Counts struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

func (c Counts) String() string {
	return fmt.Sprintf("%d/%d", c.Completed, c.Total)
}

// Adapter is a pull-only cache of the task list. Every refresh replaces
// the cached copy wholesale; the last fetch wins.
type Adapter struct {
	source   Source
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu          sync.RWMutex
	tasks       []api.Task
	lastRefresh time.Time
	lastErr     error
}

// NewAdapter creates an adapter with an empty cache
func NewAdapter(source Source, eventBus *bus.EventBus, logger zerolog.Logger) *Adapter {
	return &Adapter{
		source:   source,
		eventBus: eventBus,
		tasks:    []api.Task{},
		logger:   logger.With().Str("component", "tasks").Logger(),
	}
}

// Refresh fetches the authoritative list. On failure the cache is kept.
func (a *Adapter) Refresh(ctx context.Context) error {
	fetched, err := a.source.Tasks(ctx)
	metrics.TaskRefreshes.WithLabelValues(metrics.Outcome(err)).Inc()

	if err != nil {
		a.mu.Lock()
		a.lastErr = err
		a.mu.Unlock()

		a.logger.Warn().Err(err).Msg("Task refresh failed")
		a.eventBus.Publish(bus.Event{
			Type: bus.EventTypeTasksError,
			Data: map[string]any{"error": err.Error()},
		})
		return fmt.Errorf("refresh tasks: %w", err)
	}

	snapshot := make([]api.Task, len(fetched))
	copy(snapshot, fetched)

	a.mu.Lock()
	a.tasks = snapshot
	a.lastRefresh = time.Now()
	a.lastErr = nil
	counts := countTasks(snapshot)
	a.mu.Unlock()

	metrics.TaskCount.Set(float64(counts.Total))
	a.logger.Debug().Int("total", counts.Total).Int("completed", counts.Completed).Msg("Tasks refreshed")
	a.eventBus.Publish(bus.Event{
		Type: bus.EventTypeTasksRefreshed,
		Data: map[string]any{"total": counts.Total, "completed": counts.Completed},
	})
	return nil
}

// Tasks returns a copy of the cached list
func (a *Adapter) Tasks() []api.Task {
	a.mu.RLock()
	defer a.mu.RUnlock()
	result := make([]api.Task, len(a.tasks))
	copy(result, a.tasks)
	return result
}

// Counts returns completed/total for the cached list
func (a *Adapter) Counts() Counts {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return countTasks(a.tasks)
}

// LastRefresh returns when the cache was last replaced
func (a *Adapter) LastRefresh() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastRefresh
}

// LastError returns the most recent refresh error, nil after a success
func (a *Adapter) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// Complete marks the task at index done, then refreshes
func (a *Adapter) Complete(ctx context.Context, index int) error {
	if err := a.source.CompleteTask(ctx, index); err != nil {
		return fmt.Errorf("complete task %d: %w", index, err)
	}
	a.logger.Info().Int("index", index).Msg("Task completed")
	return a.Refresh(ctx)
}

// Clear removes every task, then refreshes
func (a *Adapter) Clear(ctx context.Context) error {
	if err := a.source.ClearTasks(ctx); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	a.logger.Info().Msg("Tasks cleared")
	return a.Refresh(ctx)
}

func countTasks(list []api.Task) Counts {
	c := Counts{Total: len(list)}
	for _, t := range list {
		if t.Completed {
			c.Completed++
		}
	}
	return c
}

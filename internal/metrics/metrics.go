// Package metrics exposes Prometheus instrumentation for a DayMind session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daymind_exchanges_total",
			Help: "Total number of exchanges by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "daymind_exchange_duration_seconds",
			Help:    "Exchange round-trip duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"kind"},
	)

	RejectedSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "daymind_rejected_submissions_total",
			Help: "Submissions refused because an exchange was already in flight",
		},
	)

	ExchangeInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "daymind_exchange_in_flight",
			Help: "1 while an exchange is sending",
		},
	)

	TaskRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daymind_task_refreshes_total",
			Help: "Task list refreshes by outcome",
		},
		[]string{"outcome"},
	)

	TaskCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "daymind_tasks",
			Help: "Number of tasks in the last refreshed list",
		},
	)

	PlaybackStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daymind_playback_starts_total",
			Help: "Playback attempts by outcome",
		},
		[]string{"outcome"},
	)

	RecordingSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "daymind_recording_seconds",
			Help:    "Length of submitted voice recordings",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)

	JournalSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daymind_journal_saves_total",
			Help: "Journal saves by mood",
		},
		[]string{"mood"},
	)
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Outcome maps an error to its label
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

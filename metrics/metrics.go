package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records saga service activity. A nil *Metrics, or one built with a
// nil registerer, is a no-op.
type Metrics struct {
	eventsTracked   *prometheus.CounterVec
	eventsSkipped   *prometheus.CounterVec
	eventsReplayed  *prometheus.CounterVec
	replayBatches   prometheus.Counter
	commandDuration *prometheus.HistogramVec
	commandFailures *prometheus.CounterVec
}

// New registers the saga metrics on the provided registerer
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		eventsTracked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_events_tracked_total",
			Help: "Domain events appended to the event store.",
		}, []string{"event_type"}),
		eventsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_events_skipped_total",
			Help: "Domain events the tracker did not append.",
		}, []string{"reason"}),
		eventsReplayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_events_replayed_total",
			Help: "Stored events re-published by replay.",
		}, []string{"event_type"}),
		replayBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saga_replay_batches_total",
			Help: "Event store pages fetched by replay.",
		}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saga_command_duration_seconds",
			Help:    "Duration of command handling in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		commandFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_command_failures_total",
			Help: "Failed commands by error kind.",
		}, []string{"command", "kind"}),
	}
	reg.MustRegister(m.eventsTracked, m.eventsSkipped, m.eventsReplayed, m.replayBatches, m.commandDuration, m.commandFailures)
	return m
}

func (m *Metrics) EventTracked(eventType string) {
	if m == nil || m.eventsTracked == nil {
		return
	}
	m.eventsTracked.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *Metrics) EventSkipped(reason string) {
	if m == nil || m.eventsSkipped == nil {
		return
	}
	m.eventsSkipped.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) EventReplayed(eventType string) {
	if m == nil || m.eventsReplayed == nil {
		return
	}
	m.eventsReplayed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *Metrics) ReplayBatch() {
	if m == nil || m.replayBatches == nil {
		return
	}
	m.replayBatches.Inc()
}

// ObserveCommand records the duration of a command and, when kind is not
// empty, a failure of that kind
func (m *Metrics) ObserveCommand(command string, duration time.Duration, kind string) {
	if m == nil || m.commandDuration == nil {
		return
	}
	command = normalizeLabel(command)
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
	if kind != "" {
		m.commandFailures.WithLabelValues(command, kind).Inc()
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the monitor's Prometheus metrics.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.RecordProbe("auth", true)
//	metrics.RecordTick("up", time.Since(start).Seconds())
type Metrics struct {
	// TickCounter counts completed ticks by evaluated state.
	// Labels: playable (up|down)
	TickCounter *prometheus.CounterVec

	// TickDuration measures how long a tick takes, probes and side effects included.
	// Buckets: 0.05s, 0.1s, 0.5s, 1s, 2.5s, 5s, 10s, 30s
	TickDuration prometheus.Histogram

	// TransitionCounter counts playability transitions.
	// Labels: from (unknown|up|down), to (up|down)
	TransitionCounter *prometheus.CounterVec

	// ProbeCounter counts probe outcomes per target.
	// Labels: target, result (open|closed)
	ProbeCounter *prometheus.CounterVec

	// ChatCallCounter counts chat-platform calls.
	// Labels: op, status (success|error)
	ChatCallCounter *prometheus.CounterVec

	// ChatErrorCounter counts failed chat-platform calls by error code.
	// Labels: op, code
	ChatErrorCounter *prometheus.CounterVec

	// Playable is 1 when the server is playable, 0 when down, -1 before the first tick.
	Playable prometheus.Gauge
}

// NewMetrics creates the monitor metrics and registers them on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		TickCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realmwatch_ticks_total",
				Help: "Total number of monitor ticks by evaluated state",
			},
			[]string{"playable"},
		),

		TickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "realmwatch_tick_duration_seconds",
				Help:    "Duration of monitor ticks in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		TransitionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realmwatch_transitions_total",
				Help: "Total number of playability transitions",
			},
			[]string{"from", "to"},
		),

		ProbeCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realmwatch_probes_total",
				Help: "Total number of reachability probes by target and result",
			},
			[]string{"target", "result"},
		),

		ChatCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realmwatch_chat_calls_total",
				Help: "Total number of chat platform calls by operation and status",
			},
			[]string{"op", "status"},
		),

		ChatErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realmwatch_chat_errors_total",
				Help: "Total number of failed chat platform calls by operation and error code",
			},
			[]string{"op", "code"},
		),

		Playable: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "realmwatch_playable",
				Help: "1 if the game server is playable, 0 if down, -1 if not yet known",
			},
		),
	}
	m.Playable.Set(-1)
	return m
}

// RecordTick records a finished tick.
func (m *Metrics) RecordTick(playable string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.TickCounter.WithLabelValues(playable).Inc()
	m.TickDuration.Observe(durationSeconds)
}

// RecordTransition records a playability change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionCounter.WithLabelValues(from, to).Inc()
}

// RecordProbe records one target's probe result.
func (m *Metrics) RecordProbe(target string, open bool) {
	if m == nil {
		return
	}
	result := "closed"
	if open {
		result = "open"
	}
	m.ProbeCounter.WithLabelValues(target, result).Inc()
}

// RecordChatCall records a chat-platform call. code is ignored on success.
func (m *Metrics) RecordChatCall(op string, code string, err error) {
	if m == nil {
		return
	}
	if err == nil {
		m.ChatCallCounter.WithLabelValues(op, "success").Inc()
		return
	}
	m.ChatCallCounter.WithLabelValues(op, "error").Inc()
	m.ChatErrorCounter.WithLabelValues(op, code).Inc()
}

// SetPlayable sets the playable gauge.
func (m *Metrics) SetPlayable(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Playable.Set(1)
		return
	}
	m.Playable.Set(0)
}

// Package metrics exposes conversation and playback observations as
// Prometheus collectors on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bclt-academy/voicequiz/pkg/core/conversation"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/player"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "voicequiz"

// Metrics holds all Prometheus metrics for a voice quiz process. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsStarted *prometheus.CounterVec
	SessionsActive  prometheus.Gauge

	// Turn metrics
	TurnsTotal     *prometheus.CounterVec
	SubmitDuration prometheus.Histogram
	WatchdogFired  *prometheus.CounterVec

	StateTransitions *prometheus.CounterVec
	PlaybackClips    *prometheus.CounterVec
	Summaries        *prometheus.CounterVec
}

var _ conversation.Metrics = (*Metrics)(nil)

// New creates a Metrics instance with all collectors registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	registry := prometheus.NewRegistry()

	sessionsStarted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Session start attempts by status",
		},
		[]string{"status"},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently in progress",
		},
	)

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processing attempts by outcome",
		},
		[]string{"outcome"},
	)

	submitDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Time from answer upload to service response",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	watchdogFired := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_fired_total",
			Help:      "Processing watchdogs that expired by kind",
		},
		[]string{"kind"},
	)

	stateTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Controller state transitions",
		},
		[]string{"from", "to"},
	)

	playbackClips := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_clips_total",
			Help:      "Audio clips that reached a terminal event by result",
		},
		[]string{"result"},
	)

	summaries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summary fetches by status",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		sessionsStarted,
		sessionsActive,
		turnsTotal,
		submitDuration,
		watchdogFired,
		stateTransitions,
		playbackClips,
		summaries,
	)

	return &Metrics{
		registry:         registry,
		SessionsStarted:  sessionsStarted,
		SessionsActive:   sessionsActive,
		TurnsTotal:       turnsTotal,
		SubmitDuration:   submitDuration,
		WatchdogFired:    watchdogFired,
		StateTransitions: stateTransitions,
		PlaybackClips:    playbackClips,
		Summaries:        summaries,
	}
}

// Registry returns the private registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSessionStart records a session start attempt.
func (m *Metrics) ObserveSessionStart(err error) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.SessionsActive.Inc()
	}
}

// ObserveSessionEnd records a session leaving the active states.
func (m *Metrics) ObserveSessionEnd() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// ObserveTurn records how a processing attempt ended. A zero duration means
// no upload completed and is not observed.
func (m *Metrics) ObserveTurn(outcome conversation.TurnOutcome, submitDuration time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(string(outcome)).Inc()
	if submitDuration > 0 {
		m.SubmitDuration.Observe(submitDuration.Seconds())
	}
}

// ObserveWatchdog records an expired processing watchdog.
func (m *Metrics) ObserveWatchdog(kind conversation.ErrorKind) {
	if m == nil {
		return
	}
	m.WatchdogFired.WithLabelValues(string(kind)).Inc()
}

// ObserveTransition records a state change.
func (m *Metrics) ObserveTransition(from, to conversation.State) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// ObserveSummary records a summary fetch.
func (m *Metrics) ObserveSummary(err error) {
	if m == nil {
		return
	}
	m.Summaries.WithLabelValues(status(err)).Inc()
}

// ClipObserver returns a player observer counting clip results.
func (m *Metrics) ClipObserver() player.Observer {
	if m == nil {
		return player.Observer{}
	}
	return player.Observer{
		OnClipEnd: func(_ int, _ player.Clip, result player.ClipResult, _ error) {
			m.PlaybackClips.WithLabelValues(string(result)).Inc()
		},
	}
}

// Package metrics exposes gate counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Probe results.
const (
	ProbeTarget    = "target"
	ProbeNotTarget = "not_target"
	ProbeError     = "error"
	ProbeStale     = "stale"
	ProbeExempt    = "exempt"
)

// Answer results.
const (
	AnswerCorrect = "correct"
	AnswerWrong   = "wrong"
	AnswerIgnored = "ignored"
)

var (
	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedgate_phase_transitions_total",
		Help: "Gate phase transitions by app and destination phase",
	}, []string{"app", "phase"})

	probeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedgate_probe_runs_total",
		Help: "Content probe runs by app and result",
	}, []string{"app", "result"})

	probeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedgate_probe_latency_seconds",
		Help:    "Content probe latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})

	dismissals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedgate_dismissals_total",
		Help: "Completed dismissals by app and tier kind",
	}, []string{"app", "tier"})

	challengeAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedgate_challenge_answers_total",
		Help: "Challenge answers by app and result",
	}, []string{"app", "result"})

	wakeFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedgate_wake_fires_total",
		Help: "Cooldown wake timers that fired",
	})

	intentsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedgate_intents_coalesced_total",
		Help: "Queued intents replaced by a newer one while the sink was behind",
	})
)

// Transition records a move into phase.
func Transition(app, phase string) {
	phaseTransitions.WithLabelValues(app, phase).Inc()
}

// ProbeRun records one probe outcome and its latency.
func ProbeRun(app, result string, elapsed time.Duration) {
	probeRuns.WithLabelValues(app, result).Inc()
	if elapsed > 0 {
		probeLatency.Observe(elapsed.Seconds())
	}
}

// Dismissal records a close transaction. relaxed selects the tier label.
func Dismissal(app string, relaxed bool) {
	tier := "strict"
	if relaxed {
		tier = "relaxed"
	}
	dismissals.WithLabelValues(app, tier).Inc()
}

// Answer records a submitted challenge answer.
func Answer(app, result string) {
	challengeAnswers.WithLabelValues(app, result).Inc()
}

// WakeFired records a cooldown wake.
func WakeFired() {
	wakeFires.Inc()
}

// IntentsCoalesced records n queued intents replaced by a newer one.
func IntentsCoalesced(n int) {
	intentsCoalesced.Add(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics holds the Prometheus collectors for satsession.
// Collectors register with the default registry, which /metrics serves.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "satsession"

var (
	// phaseTransitions counts committed phase changes.
	// Labels: from, to
	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "phase_transitions_total",
		Help:      "Committed session phase transitions",
	}, []string{"from", "to"})

	// analysisRuns counts finished analysis pipelines.
	// Labels: result (complete, error)
	analysisRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "runs_total",
		Help:      "Finished analysis pipeline runs by result",
	}, []string{"result"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Wall time of an analysis pipeline run",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	// retestAssemblies counts per-student assembly attempts.
	// Labels: result (created, skipped, error)
	retestAssemblies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retest",
		Name:      "assemblies_total",
		Help:      "Retest assembly attempts by result",
	}, []string{"result"})

	// contentRequests counts calls to the content generator.
	// Labels: kind (tutor_guide, practice, counterpart), result (ok, error)
	contentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "content",
		Name:      "requests_total",
		Help:      "Content generation requests by kind and result",
	}, []string{"kind", "result"})

	contentLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "content",
		Name:      "latency_seconds",
		Help:      "Content generation latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"kind"})

	// httpRequests counts API requests.
	// Labels: method, route, code
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern and status code",
	}, []string{"method", "route", "code"})
)

// RecordPhaseTransition records a committed phase change.
func RecordPhaseTransition(from, to string) {
	phaseTransitions.WithLabelValues(from, to).Inc()
}

// RecordAnalysisRun records a finished pipeline run.
func RecordAnalysisRun(result string, d time.Duration) {
	analysisRuns.WithLabelValues(result).Inc()
	analysisDuration.Observe(d.Seconds())
}

// RecordRetestAssembly records one assembly attempt.
func RecordRetestAssembly(result string) {
	retestAssemblies.WithLabelValues(result).Inc()
}

// RecordContentRequest records one generator call.
func RecordContentRequest(kind string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	contentRequests.WithLabelValues(kind, result).Inc()
	contentLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(method, route, code string) {
	httpRequests.WithLabelValues(method, route, code).Inc()
}

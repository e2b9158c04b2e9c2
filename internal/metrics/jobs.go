package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for job transitions.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

// JobMetrics records job lifecycle events. A nil *JobMetrics is valid and records nothing.
type JobMetrics struct {
	submitted          prometheus.Counter
	finished           *prometheus.CounterVec
	inFlight           prometheus.Gauge
	extractionDuration *prometheus.HistogramVec
	reaped             prometheus.Counter
	panics             prometheus.Counter
}

// NewJobMetrics creates the collectors and registers them on reg.
func NewJobMetrics(reg prometheus.Registerer) (*JobMetrics, error) {
	m := &JobMetrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "extraction_jobs_submitted_total",
			Help: "Total number of extraction jobs submitted.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "extraction_jobs_finished_total",
			Help: "Total number of extraction jobs that left the processing state, by outcome.",
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "extraction_jobs_in_flight",
			Help: "Number of task runners currently executing.",
		}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "extraction_call_duration_seconds",
			Help:    "Latency of calls to the extraction service.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"outcome"}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "extraction_jobs_reaped_total",
			Help: "Total number of expired jobs removed by the reaper.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "extraction_task_panics_total",
			Help: "Total number of task runner panics recovered by the worker pool.",
		}),
	}

	for _, c := range []prometheus.Collector{m.submitted, m.finished, m.inFlight, m.extractionDuration, m.reaped, m.panics} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *JobMetrics) Submitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

// Started marks a runner as in flight; the returned func must be called when it ends.
func (m *JobMetrics) Started() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

func (m *JobMetrics) Finished(outcome string) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(outcome).Inc()
}

func (m *JobMetrics) ObserveExtraction(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.extractionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *JobMetrics) Reaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reaped.Add(float64(n))
}

func (m *JobMetrics) Panicked() {
	if m == nil {
		return
	}
	m.panics.Inc()
}

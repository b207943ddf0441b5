package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gradebook-server-go/models"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds prometheus.Histogram

	StudentsEvaluatedTotal *prometheus.CounterVec
	IncompleteRecordsTotal prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	return &Metrics{
		RunsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradebook_runs_total",
				Help: "Total number of evaluation runs by outcome",
			},
			[]string{"status"}, // status: success, error, locked
		),

		RunDurationSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gradebook_run_duration_seconds",
				Help:    "Duration of a fetch, evaluate and write run in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		StudentsEvaluatedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradebook_students_evaluated_total",
				Help: "Total number of student outcomes computed by status label",
			},
			[]string{"status"},
		),

		IncompleteRecordsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "gradebook_incomplete_records_total",
				Help: "Total number of student rows whose average could not be computed",
			},
		),
	}
}

// RecordRun records the outcome and duration of a run
func (m *Metrics) RecordRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.Observe(d.Seconds())
}

// RecordResults counts evaluated students by status
func (m *Metrics) RecordResults(results []models.Result) {
	if m == nil {
		return
	}
	for _, r := range results {
		m.StudentsEvaluatedTotal.WithLabelValues(r.Status.Label()).Inc()
		if r.Incomplete() {
			m.IncompleteRecordsTotal.Inc()
		}
	}
}

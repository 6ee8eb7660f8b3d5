package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobErrorReasonDeadlineExceeded = "deadline_exceeded"
	JobErrorReasonDB               = "db"
	JobErrorReasonUnknown          = "unknown"
)

// Config carries const labels for the job metrics registry.
type Config struct {
	ServiceName string
	Environment string
}

// JobMetrics captures reconciliation batch-job health signals.
type JobMetrics struct {
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobTimeouts     *prometheus.CounterVec
	jobErrors       *prometheus.CounterVec
	rowsCorrected   *prometheus.CounterVec
	ordersVoided    prometheus.Counter
	chunksCommitted *prometheus.CounterVec
	unresolvedRows  *prometheus.CounterVec
}

var (
	jobMetricsOnce sync.Once
	jobMetrics     *JobMetrics
)

// Jobs returns the singleton job metrics registry.
func Jobs() *JobMetrics {
	return JobsWithConfig(Config{})
}

// JobsWithConfig returns the singleton job metrics registry using config labels.
func JobsWithConfig(cfg Config) *JobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetrics = newJobMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return jobMetrics
}

// ResetJobMetricsForTest resets the job metrics singleton for tests.
func ResetJobMetricsForTest() {
	jobMetricsOnce = sync.Once{}
	jobMetrics = nil
}

func newJobMetrics(registerer prometheus.Registerer, cfg Config) *JobMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "orderfacts"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "orderfacts_job_runs_total",
		Help:        "Reconciliation job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "orderfacts_job_duration_seconds",
		Help:        "Reconciliation job latency.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "orderfacts_job_timeouts_total",
		Help:        "Reconciliation job timeouts.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "orderfacts_job_errors_total",
		Help:        "Reconciliation job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	rowsCorrected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "orderfacts_rows_corrected_total",
		Help:        "Fact rows updated by each reconciliation job.",
		ConstLabels: constLabels,
	}, []string{"job"})
	ordersVoided := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "orderfacts_orders_voided_total",
		Help:        "Orders transitioned to voided status by deduplication.",
		ConstLabels: constLabels,
	})
	chunksCommitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "orderfacts_write_chunks_committed_total",
		Help:        "Correction write chunks committed.",
		ConstLabels: constLabels,
	}, []string{"job"})
	unresolvedRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "orderfacts_unresolved_rows_total",
		Help:        "Rows left untouched because classification was ambiguous.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		rowsCorrected,
		ordersVoided,
		chunksCommitted,
		unresolvedRows,
	)

	return &JobMetrics{
		jobRuns:         jobRuns,
		jobDuration:     jobDuration,
		jobTimeouts:     jobTimeouts,
		jobErrors:       jobErrors,
		rowsCorrected:   rowsCorrected,
		ordersVoided:    ordersVoided,
		chunksCommitted: chunksCommitted,
		unresolvedRows:  unresolvedRows,
	}
}

// IncJobRun increments the run counter for a job.
func (m *JobMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records job latency in seconds.
func (m *JobMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for a job.
func (m *JobMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the error counter using a low-cardinality reason.
func (m *JobMetrics) IncJobError(job string, err error) {
	if m == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, classifyError(err)).Inc()
}

// AddRowsCorrected accumulates rows updated by a job.
func (m *JobMetrics) AddRowsCorrected(job string, n int) {
	if m == nil || m.rowsCorrected == nil || n <= 0 {
		return
	}
	m.rowsCorrected.WithLabelValues(job).Add(float64(n))
}

// AddOrdersVoided accumulates orders voided by deduplication.
func (m *JobMetrics) AddOrdersVoided(n int) {
	if m == nil || m.ordersVoided == nil || n <= 0 {
		return
	}
	m.ordersVoided.Add(float64(n))
}

// IncChunkCommitted counts a committed write chunk.
func (m *JobMetrics) IncChunkCommitted(job string) {
	if m == nil || m.chunksCommitted == nil {
		return
	}
	m.chunksCommitted.WithLabelValues(job).Inc()
}

// AddUnresolved accumulates rows reported instead of corrected.
func (m *JobMetrics) AddUnresolved(job, reason string, n int) {
	if m == nil || m.unresolvedRows == nil || n <= 0 {
		return
	}
	m.unresolvedRows.WithLabelValues(job, reason).Add(float64(n))
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return JobErrorReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return JobErrorReasonDeadlineExceeded
	case strings.Contains(strings.ToLower(err.Error()), "sql"),
		strings.Contains(strings.ToLower(err.Error()), "database"):
		return JobErrorReasonDB
	default:
		return JobErrorReasonUnknown
	}
}

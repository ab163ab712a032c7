package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Metrics counts ledger task runs and the anomalies the integrity sweep finds.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	anomalies *prometheus.CounterVec
}

var (
	processOnce    sync.Once
	processMetrics *Metrics
)

// NewMetrics registers the ledger task collectors on registerer. A nil
// registerer shares one process-wide set on the default registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	processOnce.Do(func() {
		processMetrics = register(prometheus.DefaultRegisterer)
	})
	return processMetrics
}

// Run times one execution of a ledger task.
type Run struct {
	metrics *Metrics
	task    string
	started time.Time
}

// Track starts timing task. Safe on a nil receiver.
func (m *Metrics) Track(task string) *Run {
	return &Run{metrics: m, task: task, started: time.Now()}
}

// End records the run's outcome and passes err through. Failures are labelled
// with the ledger error kind so rejected closes and postings stay apart from
// infrastructure errors.
func (r *Run) End(err error) error {
	if r == nil || r.metrics == nil || r.task == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		kind := string(shared.KindOf(err))
		if kind == "" {
			kind = "internal"
		}
		r.metrics.failures.WithLabelValues(r.task, kind).Inc()
	}
	r.metrics.runs.WithLabelValues(r.task, status).Inc()
	r.metrics.duration.WithLabelValues(r.task).Observe(time.Since(r.started).Seconds())
	return err
}

// AddAnomalies adds count findings of kind for one tenant.
func (m *Metrics) AddAnomalies(kind string, tenantID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.anomalies.WithLabelValues(kind, strconv.FormatInt(tenantID, 10)).Add(float64(count))
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_jobs_total",
			Help: "Ledger task runs by task type and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_jobs_failures_total",
			Help: "Failed ledger task runs by task type and ledger error kind.",
		}, []string{"job", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_job_duration_seconds",
			Help:    "Ledger task run time in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_integrity_anomalies_total",
			Help: "Ledger integrity anomalies by kind and tenant.",
		}, []string{"kind", "tenant"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.anomalies)
	return m
}

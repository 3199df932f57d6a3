// Package metrics defines the Prometheus collectors for the record store.
//
// All methods are safe to call on a nil *Metrics so components can be built
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SheetsRequests *prometheus.CounterVec
	SheetsRetries  *prometheus.CounterVec
	SheetsLatency  *prometheus.HistogramVec
	Mutations      *prometheus.CounterVec
	AuditPending   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SheetsRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetstore_sheets_requests_total",
			Help: "Spreadsheet API operations by outcome (ok, unavailable, rejected, cancelled)",
		}, []string{"op", "outcome"}),
		SheetsRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetstore_sheets_retries_total",
			Help: "Spreadsheet API calls retried after a transient failure",
		}, []string{"op"}),
		SheetsLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sheetstore_sheets_operation_seconds",
			Help:    "Spreadsheet API operation latency including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"op"}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetstore_mutations_total",
			Help: "Record store mutations by entity, action and audit result",
		}, []string{"entity", "action", "audit"}),
		AuditPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "sheetstore_audit_pending_entries",
			Help: "Audit entries queued for retry after a failed append",
		}),
	}
}

// ObserveSheetsCall records one completed spreadsheet operation.
func (m *Metrics) ObserveSheetsCall(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SheetsRequests.WithLabelValues(op, outcome).Inc()
	m.SheetsLatency.WithLabelValues(op).Observe(d.Seconds())
}

// IncSheetsRetry counts one retry of op.
func (m *Metrics) IncSheetsRetry(op string) {
	if m == nil {
		return
	}
	m.SheetsRetries.WithLabelValues(op).Inc()
}

// IncMutation counts one acknowledged mutation.
func (m *Metrics) IncMutation(entity, action string, auditOK bool) {
	if m == nil {
		return
	}
	audit := "ok"
	if !auditOK {
		audit = "degraded"
	}
	m.Mutations.WithLabelValues(entity, action, audit).Inc()
}

// SetAuditPending reports the size of the audit retry queue.
func (m *Metrics) SetAuditPending(n int) {
	if m == nil {
		return
	}
	m.AuditPending.Set(float64(n))
}

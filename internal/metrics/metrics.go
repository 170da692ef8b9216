// Package metrics holds the Prometheus collectors of the session gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the gateway collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Registry *prometheus.Registry

	custodyCalls   *prometheus.CounterVec
	orchestrations *prometheus.CounterVec
	auditFailures  prometheus.Counter
	walletLookups  *prometheus.CounterVec
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		custodyCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_calls_total",
			Help: "Custody backend calls by operation and classified outcome.",
		}, []string{"op", "outcome"}),
		orchestrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_orchestrations_total",
			Help: "Session orchestrations by intent and result kind.",
		}, []string{"intent", "result"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Audit records that could not be persisted.",
		}),
		walletLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_lookups_total",
			Help: "Wallet address lookups by result kind.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.custodyCalls,
		m.orchestrations,
		m.auditFailures,
		m.walletLookups,
	)
	return m
}

// CustodyCall counts one custody call.
func (m *Metrics) CustodyCall(op, outcome string) {
	if m == nil {
		return
	}
	m.custodyCalls.WithLabelValues(op, outcome).Inc()
}

// Orchestration counts one finished orchestration.
func (m *Metrics) Orchestration(intent, result string) {
	if m == nil {
		return
	}
	m.orchestrations.WithLabelValues(intent, result).Inc()
}

// AuditWriteFailed counts one degraded audit write.
func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

// WalletLookup counts one wallet lookup.
func (m *Metrics) WalletLookup(result string) {
	if m == nil {
		return
	}
	m.walletLookups.WithLabelValues(result).Inc()
}

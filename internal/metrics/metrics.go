// Package metrics provides Prometheus-based metrics collection for driftscan.
// Collectors cover discovery, port probing, and whole-run accounting so
// scheduled invocations can be scraped or inspected in tests.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "driftscan"

	subsystemScan      = "scan"
	subsystemDiscovery = "discovery"
	subsystemProbe     = "probe"
)

// Probe outcome label values.
const (
	OutcomeOpen    = "open"
	OutcomeClosed  = "closed"
	OutcomeErrored = "errored"
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	hostsScanned prometheus.Counter

	discoveryDuration prometheus.Histogram
	hostsDiscovered   prometheus.Counter

	probesTotal   *prometheus.CounterVec
	probeDuration prometheus.Histogram

	changesDetected prometheus.Counter

	registry *prometheus.Registry
}

// New creates a metrics instance with all collectors registered on a fresh
// registry.
func New() *Metrics {
	m := &Metrics{
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "runs_total",
			Help:      "Total scan runs by final status.",
		}, []string{"status"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of complete scan runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		hostsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "hosts_total",
			Help:      "Total hosts whose port sets were probed.",
		}),
		discoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "duration_seconds",
			Help:      "Duration of discovery sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		hostsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "hosts_total",
			Help:      "Total hosts that answered discovery probes.",
		}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "attempts_total",
			Help:      "Port probe attempts by outcome.",
		}, []string{"outcome"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of individual port probe attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		changesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "changed_hosts_total",
			Help:      "Hosts whose open port set differed from the baseline.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.scansTotal,
		m.scanDuration,
		m.hostsScanned,
		m.discoveryDuration,
		m.hostsDiscovered,
		m.probesTotal,
		m.probeDuration,
		m.changesDetected,
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncrementScansTotal records a completed scan run with its final status.
func (m *Metrics) IncrementScansTotal(status string) {
	m.scansTotal.WithLabelValues(status).Inc()
}

// RecordScanDuration records the duration of a complete scan run.
func (m *Metrics) RecordScanDuration(d time.Duration) {
	m.scanDuration.Observe(d.Seconds())
}

// IncrementHostsScanned records hosts whose port sets were probed.
func (m *Metrics) IncrementHostsScanned(n int) {
	m.hostsScanned.Add(float64(n))
}

// RecordDiscovery records a discovery sweep and the number of responders.
func (m *Metrics) RecordDiscovery(d time.Duration, hostsFound int) {
	m.discoveryDuration.Observe(d.Seconds())
	m.hostsDiscovered.Add(float64(hostsFound))
}

// RecordProbeAttempt records a single port probe attempt.
func (m *Metrics) RecordProbeAttempt(outcome string, d time.Duration) {
	m.probesTotal.WithLabelValues(outcome).Inc()
	m.probeDuration.Observe(d.Seconds())
}

// IncrementChangedHosts records hosts with baseline drift.
func (m *Metrics) IncrementChangedHosts(n int) {
	m.changesDetected.Add(float64(n))
}

var (
	globalMetrics *Metrics
	globalOnce    sync.Once
)

// GetGlobalMetrics returns the process-wide metrics instance, creating it on
// first use.
func GetGlobalMetrics() *Metrics {
	globalOnce.Do(func() {
		globalMetrics = New()
	})
	return globalMetrics
}

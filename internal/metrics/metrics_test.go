package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New()

	m.IncrementScansTotal("success")
	m.RecordScanDuration(2 * time.Second)
	m.IncrementHostsScanned(5)
	m.RecordDiscovery(500*time.Millisecond, 3)
	m.RecordProbeAttempt(OutcomeOpen, 10*time.Millisecond)
	m.RecordProbeAttempt(OutcomeClosed, 5*time.Millisecond)
	m.RecordProbeAttempt(OutcomeErrored, time.Second)
	m.IncrementChangedHosts(2)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"driftscan_scan_runs_total",
		"driftscan_scan_duration_seconds",
		"driftscan_scan_hosts_total",
		"driftscan_discovery_duration_seconds",
		"driftscan_discovery_hosts_total",
		"driftscan_probe_attempts_total",
		"driftscan_probe_attempt_duration_seconds",
		"driftscan_scan_changed_hosts_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestCounterValues(t *testing.T) {
	m := New()

	m.IncrementHostsScanned(4)
	m.IncrementHostsScanned(1)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.hostsScanned))

	m.RecordProbeAttempt(OutcomeOpen, time.Millisecond)
	m.RecordProbeAttempt(OutcomeOpen, time.Millisecond)
	m.RecordProbeAttempt(OutcomeClosed, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.probesTotal.WithLabelValues(OutcomeOpen)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probesTotal.WithLabelValues(OutcomeClosed)))

	m.IncrementChangedHosts(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.changesDetected))
}

func TestGetGlobalMetrics(t *testing.T) {
	first := GetGlobalMetrics()
	second := GetGlobalMetrics()
	assert.Same(t, first, second)
}

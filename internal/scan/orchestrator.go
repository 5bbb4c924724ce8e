// Package scan contains the scan orchestrator and the shared result model.
// The orchestrator sequences range resolution, host discovery and per-host
// port probing into one normalized result set per run.
package scan

import (
	"context"
	"net/netip"
	"sort"
	"time"

	"github.com/kallerud/driftscan/internal/logging"
	"github.com/kallerud/driftscan/internal/metrics"
	"github.com/kallerud/driftscan/internal/netrange"
)

// Discoverer finds which candidate addresses have a live host behind them.
type Discoverer interface {
	Discover(ctx context.Context, candidates []netip.Addr) (map[netip.Addr]struct{}, error)
}

// Prober determines the open ports on a single host.
type Prober interface {
	ProbeHost(ctx context.Context, host netip.Addr, ports []int) ([]int, error)
}

// Reporter receives advisory lifecycle events during a run. Implementations
// must not affect control flow.
type Reporter interface {
	ScanStarted(network string, candidates int)
	HostsFound(n int)
	ScanningHost(host netip.Addr)
}

// NopReporter discards all lifecycle events.
type NopReporter struct{}

func (NopReporter) ScanStarted(string, int) {}

func (NopReporter) HostsFound(int) {}

func (NopReporter) ScanningHost(netip.Addr) {}

// Orchestrator runs complete scans: resolve, discover, probe, assemble.
type Orchestrator struct {
	discoverer Discoverer
	prober     Prober
	reporter   Reporter
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

// NewOrchestrator creates an orchestrator over the given discovery and
// probe engines.
func NewOrchestrator(d Discoverer, p Prober) *Orchestrator {
	return &Orchestrator{
		discoverer: d,
		prober:     p,
		reporter:   NopReporter{},
		metrics:    metrics.GetGlobalMetrics(),
		logger:     logging.Default().WithComponent("orchestrator"),
	}
}

// SetReporter installs a lifecycle event sink.
func (o *Orchestrator) SetReporter(r Reporter) {
	if r != nil {
		o.reporter = r
	}
}

// Run executes one scan over the given range and port set and returns the
// result set, ordered ascending by host address. An empty result set with a
// nil error means no live hosts were found; the caller decides whether that
// is fatal. Hosts are probed one at a time: concurrency lives inside a
// single host's port set.
func (o *Orchestrator) Run(ctx context.Context, network string, ports []int) (ResultSet, error) {
	start := time.Now()
	status := "success"
	defer func() {
		o.metrics.IncrementScansTotal(status)
		o.metrics.RecordScanDuration(time.Since(start))
	}()

	candidates, err := netrange.Expand(network)
	if err != nil {
		status = "error"
		return nil, err
	}
	o.reporter.ScanStarted(network, len(candidates))
	o.logger.Info("scan started", "network", network, "candidates", len(candidates))

	responders, err := o.discoverer.Discover(ctx, candidates)
	if err != nil {
		status = "error"
		return nil, err
	}

	hosts := make([]netip.Addr, 0, len(responders))
	for h := range responders {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Less(hosts[j]) })
	o.reporter.HostsFound(len(hosts))

	if len(hosts) == 0 {
		o.logger.Info("no live hosts found", "network", network)
		return ResultSet{}, nil
	}

	results := make(ResultSet, 0, len(hosts))
	for _, host := range hosts {
		o.reporter.ScanningHost(host)
		open, err := o.prober.ProbeHost(ctx, host, ports)
		if err != nil {
			status = "error"
			return nil, err
		}
		results = append(results, Record{
			Host:      host,
			OpenPorts: open,
			ScannedAt: time.Now(),
		})
		o.logger.InfoProbe("host scanned", host.String(), "open_ports", len(open))
	}

	o.metrics.IncrementHostsScanned(len(results))
	results.Sort()
	return results, nil
}

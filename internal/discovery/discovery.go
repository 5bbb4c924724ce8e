// Package discovery provides live-host discovery for driftscan. It sweeps a
// candidate address set with ARP broadcast probes and collects the addresses
// that answer within a bounded wait window. ARP resolution happens below the
// ordinary connection layer, so the engine requires raw-socket privileges.
package discovery

import (
	"context"
	"net"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kallerud/driftscan/internal/errors"
	"github.com/kallerud/driftscan/internal/logging"
	"github.com/kallerud/driftscan/internal/metrics"
)

const (
	// Default discovery configuration values.
	defaultWaitWindow = 2 * time.Second

	// Pacing between ARP request writes so a large sweep does not flood
	// the interface send queue.
	sendInterval = 1 * time.Millisecond
)

// Transport is the link-layer packet primitive the engine sweeps with.
// *pcap.Handle satisfies it; tests substitute fakes that replay canned
// replies.
type Transport interface {
	WritePacketData(data []byte) error
	ReadPacketData() (data []byte, err error)
	Close()
}

// TransportFactory opens a Transport on the named interface.
type TransportFactory func(ifaceName string) (Transport, error)

// Config represents discovery configuration.
type Config struct {
	// Interface optionally pins the sweep to a named interface. When
	// empty the engine picks the interface whose network contains the
	// candidates.
	Interface string
	// WaitWindow bounds how long the engine collects replies after the
	// sweep is dispatched.
	WaitWindow time.Duration
}

// Engine handles ARP-based host discovery.
type Engine struct {
	ifaceName    string
	waitWindow   time.Duration
	newTransport TransportFactory
	metrics      *metrics.Metrics
	logger       *logging.Logger
}

// NewEngine creates a discovery engine. A zero wait window falls back to
// the default.
func NewEngine(cfg Config) *Engine {
	if cfg.WaitWindow <= 0 {
		cfg.WaitWindow = defaultWaitWindow
	}
	return &Engine{
		ifaceName:    cfg.Interface,
		waitWindow:   cfg.WaitWindow,
		newTransport: openPcapTransport,
		metrics:      metrics.GetGlobalMetrics(),
		logger:       logging.Default().WithComponent("discovery"),
	}
}

// SetTransportFactory replaces the link-layer transport. Used by tests.
func (e *Engine) SetTransportFactory(f TransportFactory) {
	e.newTransport = f
}

// Discover sweeps the candidate addresses with ARP requests and returns the
// set of addresses that replied within the wait window. Duplicate replies
// are coalesced; addresses outside the candidate set are ignored. An empty
// result is not an error. Missing raw-socket privileges surface as a typed
// permission error.
func (e *Engine) Discover(ctx context.Context, candidates []netip.Addr) (map[netip.Addr]struct{}, error) {
	found := make(map[netip.Addr]struct{})
	if len(candidates) == 0 {
		return found, nil
	}

	iface, srcIP, err := e.pickInterface(candidates)
	if err != nil {
		return nil, err
	}

	tr, err := e.newTransport(iface.Name)
	if err != nil {
		return nil, errors.ErrPrivilege(iface.Name, err)
	}
	defer tr.Close()

	e.logger.InfoDiscovery("starting ARP sweep", srcIP.String(),
		"interface", iface.Name,
		"candidates", len(candidates),
		"window", e.waitWindow)

	want := make(map[netip.Addr]struct{}, len(candidates))
	for _, c := range candidates {
		want[c] = struct{}{}
	}

	start := time.Now()
	sweepCtx, cancel := context.WithTimeout(ctx, e.waitWindow)
	defer cancel()

	g, sweepCtx := errgroup.WithContext(sweepCtx)
	g.Go(func() error {
		return e.sendRequests(sweepCtx, tr, iface.HardwareAddr, srcIP, candidates)
	})
	g.Go(func() error {
		e.collectReplies(sweepCtx, tr, want, found)
		return nil
	})

	if err := g.Wait(); err != nil {
		// Caller-level cancellation aborts the sweep; window expiry
		// does not.
		if ctx.Err() != nil {
			return found, errors.WrapDiscoveryError(errors.CodeCanceled,
				"discovery interrupted", err)
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return found, errors.WrapDiscoveryError(errors.CodeCanceled,
			"discovery interrupted", err)
	}

	e.metrics.RecordDiscovery(time.Since(start), len(found))
	e.logger.InfoDiscovery("ARP sweep finished", srcIP.String(),
		"responders", len(found))
	return found, nil
}

// sendRequests writes one ARP request per candidate. Individual write
// failures are logged and skipped; only a total inability to write aborts
// the sweep.
func (e *Engine) sendRequests(ctx context.Context, tr Transport,
	srcMAC net.HardwareAddr, srcIP netip.Addr, candidates []netip.Addr) error {
	var writeFailures int
	for _, target := range candidates {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pkt, err := buildRequest(srcMAC, srcIP, target)
		if err != nil {
			return errors.WrapDiscoveryError(errors.CodeDiscoveryFailed,
				"failed to build ARP request", err)
		}
		if err := tr.WritePacketData(pkt); err != nil {
			writeFailures++
			e.logger.Debug("ARP request write failed",
				"target", target.String(), "error", err)
			if writeFailures == len(candidates) {
				return errors.WrapDiscoveryError(errors.CodeDiscoveryFailed,
					"all ARP request writes failed", err)
			}
			continue
		}
		time.Sleep(sendInterval)
	}
	return nil
}

// collectReplies reads ARP replies until the sweep context expires or every
// candidate has answered. Read errors are treated as transient: the pcap
// handle surfaces periodic timeouts so the loop can observe the deadline.
func (e *Engine) collectReplies(ctx context.Context, tr Transport,
	want, found map[netip.Addr]struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, err := tr.ReadPacketData()
		if err != nil {
			continue
		}
		addr, ok := parseReply(data)
		if !ok {
			continue
		}
		if _, wanted := want[addr]; !wanted {
			continue
		}
		if _, dup := found[addr]; dup {
			continue
		}
		found[addr] = struct{}{}
		e.logger.Debug("host responded", "host", addr.String())
		if len(found) == len(want) {
			return
		}
	}
}

// pickInterface selects the local interface used for the sweep: either the
// configured one, or the first up, non-loopback interface whose IPv4
// network contains the first candidate address.
func (e *Engine) pickInterface(candidates []netip.Addr) (*net.Interface, netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, netip.Addr{}, errors.WrapDiscoveryError(errors.CodeDiscoveryFailed,
			"failed to enumerate interfaces", err)
	}

	for i := range ifaces {
		iface := &ifaces[i]
		if e.ifaceName != "" && iface.Name != e.ifaceName {
			continue
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			src, ok := netip.AddrFromSlice(ipnet.IP.To4())
			if !ok {
				continue
			}
			if e.ifaceName != "" || ipnet.Contains(net.IP(candidates[0].AsSlice())) {
				return iface, src, nil
			}
		}
	}

	err = errors.NewDiscoveryError(errors.CodeDiscoveryFailed,
		"no interface found for target network")
	return nil, netip.Addr{}, err
}

// Package probe implements the port probe engine. For a single host and a
// set of candidate ports it determines which ports accept a TCP connection,
// using a fixed-size pool of workers so that no more than the configured
// concurrency limit of attempts is ever in flight.
package probe

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/kallerud/driftscan/internal/logging"
	"github.com/kallerud/driftscan/internal/metrics"
)

const (
	// Default probe configuration values.
	defaultTimeout     = 1 * time.Second
	defaultConcurrency = 100
)

// State classifies the outcome of a single probe attempt. Closed and
// Errored both read as "not open" once a host's port set is assembled, but
// the distinction stays observable for logging and tests.
type State string

const (
	StateOpen    State = "open"
	StateClosed  State = "closed"
	StateErrored State = "errored"
)

// Attempt is the outcome of one connect attempt against one port. A single
// failed attempt is final for that port in that scan pass; there are no
// retries.
type Attempt struct {
	Port  int
	State State
	RTT   time.Duration
	Err   error
}

// Open reports whether the attempt found the port accepting connections.
func (a Attempt) Open() bool {
	return a.State == StateOpen
}

// Dialer is the transport-connect primitive the engine probes with. It is
// satisfied by *net.Dialer; tests substitute instrumented implementations.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds the probe engine tunables.
type Config struct {
	// Timeout bounds each individual connect attempt.
	Timeout time.Duration
	// Concurrency is the hard cap on in-flight attempts per host.
	Concurrency int
}

// DefaultConfig returns the default probe configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:     defaultTimeout,
		Concurrency: defaultConcurrency,
	}
}

// Engine probes TCP ports with bounded concurrency.
type Engine struct {
	dialer      Dialer
	timeout     time.Duration
	concurrency int
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// NewEngine creates a probe engine with the given configuration. Zero
// values fall back to defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Engine{
		dialer:      &net.Dialer{},
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		metrics:     metrics.GetGlobalMetrics(),
		logger:      logging.Default().WithComponent("probe"),
	}
}

// SetDialer replaces the transport-connect primitive. Used by tests to
// observe the concurrency bound and inject failures.
func (e *Engine) SetDialer(d Dialer) {
	e.dialer = d
}

// ProbeHost attempts every port in ports against host and returns the set
// of open ports sorted ascending. Closed and errored attempts are collapsed
// to "not open"; no error is returned for individual attempt failures.
func (e *Engine) ProbeHost(ctx context.Context, host netip.Addr, ports []int) ([]int, error) {
	attempts, err := e.ProbeHostDetailed(ctx, host, ports)
	if err != nil {
		return nil, err
	}
	open := make([]int, 0, len(attempts))
	for _, a := range attempts {
		if a.Open() {
			open = append(open, a.Port)
		}
	}
	sort.Ints(open)
	return open, nil
}

// ProbeHostDetailed runs the probe pool and returns every attempt outcome,
// preserving the Open/Closed/Errored classification. The only error it
// returns is context cancellation; transport failures are recorded per
// attempt.
func (e *Engine) ProbeHostDetailed(ctx context.Context, host netip.Addr, ports []int) ([]Attempt, error) {
	if len(ports) == 0 {
		return nil, nil
	}

	workers := e.concurrency
	if len(ports) < workers {
		workers = len(ports)
	}

	jobs := make(chan int, len(ports))
	for _, p := range ports {
		jobs <- p
	}
	close(jobs)

	var (
		mu       sync.Mutex
		attempts = make([]Attempt, 0, len(ports))
		wg       sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for port := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				a := e.attempt(ctx, host, port)
				mu.Lock()
				attempts = append(attempts, a)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(attempts, func(i, j int) bool { return attempts[i].Port < attempts[j].Port })
	return attempts, nil
}

// attempt performs a single connect-and-close against host:port, bounded by
// the per-attempt timeout.
func (e *Engine) attempt(ctx context.Context, host netip.Addr, port int) Attempt {
	addr := net.JoinHostPort(host.String(), strconv.Itoa(port))

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	conn, err := e.dialer.DialContext(attemptCtx, "tcp", addr)
	rtt := time.Since(start)

	a := Attempt{Port: port, RTT: rtt}
	switch {
	case err == nil:
		_ = conn.Close()
		a.State = StateOpen
	case errors.Is(err, syscall.ECONNREFUSED):
		a.State = StateClosed
		a.Err = err
	default:
		a.State = StateErrored
		a.Err = err
		e.logger.DebugProbe("probe attempt failed", host.String(),
			"port", port, "error", err)
	}

	e.metrics.RecordProbeAttempt(string(a.State), rtt)
	return a
}

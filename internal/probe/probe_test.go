package probe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDialer maps ports to canned outcomes and tracks how many dials are in
// flight at once.
type fakeDialer struct {
	mu         sync.Mutex
	outcomes   map[int]error
	delay      time.Duration
	inFlight   int64
	maxInUse   int64
	totalDials int64
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	cur := atomic.AddInt64(&d.inFlight, 1)
	defer atomic.AddInt64(&d.inFlight, -1)
	atomic.AddInt64(&d.totalDials, 1)

	d.mu.Lock()
	if cur > d.maxInUse {
		d.maxInUse = cur
	}
	d.mu.Unlock()

	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, err
	}

	if outcome, ok := d.outcomes[port]; ok && outcome != nil {
		return nil, outcome
	}
	server, client := net.Pipe()
	go func() { _ = server.Close() }()
	return client, nil
}

func (d *fakeDialer) maxConcurrent() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxInUse
}

func TestProbeHost(t *testing.T) {
	host := netip.MustParseAddr("10.0.0.1")

	t.Run("returns only open ports sorted ascending", func(t *testing.T) {
		dialer := &fakeDialer{outcomes: map[int]error{
			22:  nil,
			80:  syscall.ECONNREFUSED,
			443: nil,
			807: fmt.Errorf("connect: no route to host"),
		}}

		engine := NewEngine(DefaultConfig())
		engine.SetDialer(dialer)

		open, err := engine.ProbeHost(context.Background(), host, []int{807, 443, 22, 80})
		require.NoError(t, err)
		assert.Equal(t, []int{22, 443}, open)
	})

	t.Run("empty port set probes nothing", func(t *testing.T) {
		dialer := &fakeDialer{}
		engine := NewEngine(DefaultConfig())
		engine.SetDialer(dialer)

		open, err := engine.ProbeHost(context.Background(), host, nil)
		require.NoError(t, err)
		assert.Empty(t, open)
		assert.Zero(t, atomic.LoadInt64(&dialer.totalDials))
	})

	t.Run("respects the concurrency bound", func(t *testing.T) {
		ports := make([]int, 50)
		for i := range ports {
			ports[i] = 8000 + i
		}
		dialer := &fakeDialer{delay: 10 * time.Millisecond}
		engine := NewEngine(Config{Timeout: time.Second, Concurrency: 5})
		engine.SetDialer(dialer)

		_, err := engine.ProbeHost(context.Background(), host, ports)
		require.NoError(t, err)
		assert.LessOrEqual(t, dialer.maxConcurrent(), int64(5))
		assert.Equal(t, int64(50), atomic.LoadInt64(&dialer.totalDials))
	})

	t.Run("returns context error on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		engine := NewEngine(DefaultConfig())
		engine.SetDialer(&fakeDialer{})

		_, err := engine.ProbeHost(ctx, host, []int{22, 80})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProbeHostDetailed(t *testing.T) {
	host := netip.MustParseAddr("10.0.0.1")

	t.Run("classifies each attempt", func(t *testing.T) {
		dialer := &fakeDialer{outcomes: map[int]error{
			22: nil,
			80: syscall.ECONNREFUSED,
			81: fmt.Errorf("connect: network is unreachable"),
		}}
		engine := NewEngine(DefaultConfig())
		engine.SetDialer(dialer)

		attempts, err := engine.ProbeHostDetailed(context.Background(), host, []int{81, 22, 80})
		require.NoError(t, err)
		require.Len(t, attempts, 3)

		byPort := make(map[int]Attempt, len(attempts))
		for _, a := range attempts {
			byPort[a.Port] = a
		}
		assert.Equal(t, StateOpen, byPort[22].State)
		assert.Equal(t, StateClosed, byPort[80].State)
		assert.Equal(t, StateErrored, byPort[81].State)
		assert.True(t, byPort[22].Open())
		assert.False(t, byPort[80].Open())
		assert.False(t, byPort[81].Open())
	})

	t.Run("results are sorted by port", func(t *testing.T) {
		engine := NewEngine(DefaultConfig())
		engine.SetDialer(&fakeDialer{})

		attempts, err := engine.ProbeHostDetailed(context.Background(), host,
			[]int{443, 22, 8080, 80})
		require.NoError(t, err)
		require.Len(t, attempts, 4)
		assert.True(t, sort.SliceIsSorted(attempts, func(i, j int) bool {
			return attempts[i].Port < attempts[j].Port
		}))
	})
}

func TestProbeHostRealListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	host := netip.MustParseAddr("127.0.0.1")

	engine := NewEngine(Config{Timeout: time.Second, Concurrency: 10})
	open, err := engine.ProbeHost(context.Background(), host, []int{addr.Port})
	require.NoError(t, err)
	assert.Equal(t, []int{addr.Port}, open)
}

func TestNewEngineDefaults(t *testing.T) {
	engine := NewEngine(Config{})
	assert.Equal(t, defaultTimeout, engine.timeout)
	assert.Equal(t, defaultConcurrency, engine.concurrency)
}

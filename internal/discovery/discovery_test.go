package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

// buildReply serializes an ARP reply frame claiming sender owns addr.
func buildReply(t *testing.T, sender net.HardwareAddr, addr netip.Addr) []byte {
	t.Helper()

	eth := layers.Ethernet{
		SrcMAC:       sender,
		DstMAC:       testMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     hwAddressSize,
		ProtAddressSize:   protAddressSize,
		Operation:         layers.ARPReply,
		SourceHwAddress:   sender,
		SourceProtAddress: addr.AsSlice(),
		DstHwAddress:      testMAC,
		DstProtAddress:    []byte{192, 168, 1, 1},
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &arp))
	return buf.Bytes()
}

// fakeTransport records writes and replays canned reply frames.
type fakeTransport struct {
	mu       sync.Mutex
	written  [][]byte
	replies  [][]byte
	next     int
	writeErr error
}

func (tr *fakeTransport) WritePacketData(data []byte) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.writeErr != nil {
		return tr.writeErr
	}
	tr.written = append(tr.written, data)
	return nil
}

func (tr *fakeTransport) ReadPacketData() ([]byte, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.next >= len(tr.replies) {
		// Emulate the capture handle's periodic read timeout.
		time.Sleep(time.Millisecond)
		return nil, fmt.Errorf("timeout expired")
	}
	data := tr.replies[tr.next]
	tr.next++
	return data, nil
}

func (tr *fakeTransport) Close() {}

func (tr *fakeTransport) writtenFrames() [][]byte {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.written
}

func candidateSet(addrs ...netip.Addr) map[netip.Addr]struct{} {
	set := make(map[netip.Addr]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return set
}

func TestBuildRequest(t *testing.T) {
	srcIP := netip.MustParseAddr("192.168.1.1")
	target := netip.MustParseAddr("192.168.1.50")

	data, err := buildRequest(testMAC, srcIP, target)
	require.NoError(t, err)

	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	ethLayer := packet.Layer(layers.LayerTypeEthernet)
	require.NotNil(t, ethLayer)
	eth := ethLayer.(*layers.Ethernet)
	assert.Equal(t, broadcastMAC, eth.DstMAC)
	assert.Equal(t, testMAC, eth.SrcMAC)

	arpLayer := packet.Layer(layers.LayerTypeARP)
	require.NotNil(t, arpLayer)
	arp := arpLayer.(*layers.ARP)
	assert.Equal(t, uint16(layers.ARPRequest), arp.Operation)
	assert.Equal(t, srcIP.AsSlice(), []byte(arp.SourceProtAddress))
	assert.Equal(t, target.AsSlice(), []byte(arp.DstProtAddress))
}

func TestParseReply(t *testing.T) {
	t.Run("round-trips a reply frame", func(t *testing.T) {
		sender := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x42}
		addr := netip.MustParseAddr("192.168.1.77")

		got, ok := parseReply(buildReply(t, sender, addr))
		require.True(t, ok)
		assert.Equal(t, addr, got)
	})

	t.Run("rejects requests and garbage", func(t *testing.T) {
		request, err := buildRequest(testMAC,
			netip.MustParseAddr("192.168.1.1"), netip.MustParseAddr("192.168.1.2"))
		require.NoError(t, err)

		_, ok := parseReply(request)
		assert.False(t, ok)

		_, ok = parseReply([]byte{0x01, 0x02, 0x03})
		assert.False(t, ok)
	})
}

func TestSendRequests(t *testing.T) {
	engine := NewEngine(Config{})
	srcIP := netip.MustParseAddr("192.168.1.1")

	t.Run("writes one request per candidate", func(t *testing.T) {
		tr := &fakeTransport{}
		candidates := []netip.Addr{
			netip.MustParseAddr("192.168.1.10"),
			netip.MustParseAddr("192.168.1.11"),
			netip.MustParseAddr("192.168.1.12"),
		}

		err := engine.sendRequests(context.Background(), tr, testMAC, srcIP, candidates)
		require.NoError(t, err)

		frames := tr.writtenFrames()
		require.Len(t, frames, 3)
		for i, frame := range frames {
			packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
			arpLayer := packet.Layer(layers.LayerTypeARP)
			require.NotNil(t, arpLayer)
			arp := arpLayer.(*layers.ARP)
			assert.Equal(t, candidates[i].AsSlice(), []byte(arp.DstProtAddress))
		}
	})

	t.Run("fails when every write fails", func(t *testing.T) {
		tr := &fakeTransport{writeErr: fmt.Errorf("send queue full")}
		candidates := []netip.Addr{netip.MustParseAddr("192.168.1.10")}

		err := engine.sendRequests(context.Background(), tr, testMAC, srcIP, candidates)
		assert.Error(t, err)
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		tr := &fakeTransport{}
		err := engine.sendRequests(ctx, tr, testMAC, srcIP,
			[]netip.Addr{netip.MustParseAddr("192.168.1.10")})
		require.NoError(t, err)
		assert.Empty(t, tr.writtenFrames())
	})
}

func TestCollectReplies(t *testing.T) {
	engine := NewEngine(Config{})
	sender := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x42}

	alive := netip.MustParseAddr("192.168.1.20")
	other := netip.MustParseAddr("192.168.1.21")
	stranger := netip.MustParseAddr("10.9.9.9")

	t.Run("collects candidate replies and drops the rest", func(t *testing.T) {
		tr := &fakeTransport{replies: [][]byte{
			buildReply(t, sender, alive),
			buildReply(t, sender, stranger),
			buildReply(t, sender, alive),
		}}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		found := make(map[netip.Addr]struct{})
		engine.collectReplies(ctx, tr, candidateSet(alive, other), found)

		assert.Equal(t, candidateSet(alive), found)
	})

	t.Run("returns early once every candidate answered", func(t *testing.T) {
		tr := &fakeTransport{replies: [][]byte{
			buildReply(t, sender, alive),
			buildReply(t, sender, other),
		}}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		start := time.Now()
		found := make(map[netip.Addr]struct{})
		engine.collectReplies(ctx, tr, candidateSet(alive, other), found)

		assert.Equal(t, candidateSet(alive, other), found)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestDiscoverEmptyCandidates(t *testing.T) {
	engine := NewEngine(Config{})
	engine.SetTransportFactory(func(string) (Transport, error) {
		t.Fatal("transport should not be opened for an empty sweep")
		return nil, nil
	})

	found, err := engine.Discover(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

package discovery

import (
	"os"
	"time"

	"github.com/google/gopacket/pcap"
)

const (
	pcapSnapshotLen = 65536
	// Read timeout so the collect loop can observe the wait window
	// between packets.
	pcapReadTimeout = 100 * time.Millisecond
)

// pcapTransport adapts *pcap.Handle to the Transport interface.
type pcapTransport struct {
	handle *pcap.Handle
}

// openPcapTransport opens a live capture handle on the named interface,
// filtered to ARP traffic. The privilege gate runs first so the caller gets
// a clean permission error instead of a capture-library one.
func openPcapTransport(ifaceName string) (Transport, error) {
	if !canOpenRawSocket() {
		return nil, os.ErrPermission
	}
	handle, err := pcap.OpenLive(ifaceName, pcapSnapshotLen, false, pcapReadTimeout)
	if err != nil {
		return nil, err
	}
	if err := handle.SetBPFFilter("arp"); err != nil {
		handle.Close()
		return nil, err
	}
	return &pcapTransport{handle: handle}, nil
}

func (t *pcapTransport) WritePacketData(data []byte) error {
	return t.handle.WritePacketData(data)
}

func (t *pcapTransport) ReadPacketData() ([]byte, error) {
	data, _, err := t.handle.ReadPacketData()
	return data, err
}

func (t *pcapTransport) Close() {
	t.handle.Close()
}

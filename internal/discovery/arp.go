package discovery

import (
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	hwAddressSize   = 6
	protAddressSize = 4
)

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// buildRequest serializes an Ethernet-framed ARP who-has request for the
// target address, broadcast to the segment.
func buildRequest(srcMAC net.HardwareAddr, srcIP, target netip.Addr) ([]byte, error) {
	eth := layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       broadcastMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     hwAddressSize,
		ProtAddressSize:   protAddressSize,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: srcIP.AsSlice(),
		DstHwAddress:      make([]byte, hwAddressSize),
		DstProtAddress:    target.AsSlice(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseReply extracts the sender address from an ARP reply frame. Returns
// false for anything that is not a well-formed IPv4 ARP reply.
func parseReply(data []byte) (netip.Addr, bool) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	arpLayer := packet.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		return netip.Addr{}, false
	}
	arp, ok := arpLayer.(*layers.ARP)
	if !ok || arp.Operation != layers.ARPReply {
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(arp.SourceProtAddress)
	if !ok || !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, true
}

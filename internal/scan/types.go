package scan

import (
	"net/netip"
	"sort"
	"time"
)

// Record holds the probe outcome for a single discovered host. It is created
// once per host per run, after all port probes for that host complete, and
// is never mutated afterwards.
type Record struct {
	// Host is the IPv4 address of the scanned host.
	Host netip.Addr `json:"ip"`
	// OpenPorts is the set of ports that accepted a TCP connection,
	// sorted ascending.
	OpenPorts []int `json:"open_ports"`
	// ScannedAt is the time the host's probe batch completed.
	ScannedAt time.Time `json:"scanned_at"`
}

// ResultSet is the ordered sequence of records produced by one run, one per
// discovered host, ascending by host address.
type ResultSet []Record

// Sort orders the result set ascending by host address.
func (rs ResultSet) Sort() {
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Host.Less(rs[j].Host)
	})
}

// Hosts returns the addresses covered by the result set, in set order.
func (rs ResultSet) Hosts() []netip.Addr {
	hosts := make([]netip.Addr, 0, len(rs))
	for i := range rs {
		hosts = append(hosts, rs[i].Host)
	}
	return hosts
}

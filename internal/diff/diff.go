// Package diff computes the delta between a current scan result set and a
// previously persisted baseline, surfacing newly opened and newly closed
// ports per host.
package diff

import (
	"net/netip"
	"sort"
	"time"

	"github.com/kallerud/driftscan/internal/scan"
)

// Change holds the port drift detected for a single host. A change is
// emitted only when at least one of the port sets is non-empty.
type Change struct {
	// Host is the address the drift was detected on.
	Host netip.Addr `json:"ip"`
	// AddedPorts are open in the current scan but not the baseline.
	AddedPorts []int `json:"added_ports"`
	// RemovedPorts were open in the baseline but not the current scan.
	RemovedPorts []int `json:"removed_ports"`
	// DetectedAt is copied from the current scan record for the host.
	DetectedAt time.Time `json:"detected_at"`
}

// ChangeSet is the ordered sequence of changes, following the order of the
// current result set.
type ChangeSet []Change

// Diff compares current against baseline and returns one Change per host
// whose open port set differs. A host absent from the baseline is reported
// with all its open ports added. Hosts present only in the baseline are not
// reported: a host going offline is not a port change.
func Diff(current, baseline scan.ResultSet) ChangeSet {
	baselinePorts := make(map[netip.Addr][]int, len(baseline))
	for i := range baseline {
		baselinePorts[baseline[i].Host] = baseline[i].OpenPorts
	}

	changes := make(ChangeSet, 0)
	for i := range current {
		rec := &current[i]
		added, removed := portDelta(rec.OpenPorts, baselinePorts[rec.Host])
		if len(added) == 0 && len(removed) == 0 {
			continue
		}
		changes = append(changes, Change{
			Host:         rec.Host,
			AddedPorts:   added,
			RemovedPorts: removed,
			DetectedAt:   rec.ScannedAt,
		})
	}
	return changes
}

// portDelta computes the two set differences between the current and
// baseline port sets, each sorted ascending.
func portDelta(current, baseline []int) (added, removed []int) {
	inBaseline := make(map[int]struct{}, len(baseline))
	for _, p := range baseline {
		inBaseline[p] = struct{}{}
	}
	inCurrent := make(map[int]struct{}, len(current))
	for _, p := range current {
		inCurrent[p] = struct{}{}
	}

	added = make([]int, 0)
	for p := range inCurrent {
		if _, ok := inBaseline[p]; !ok {
			added = append(added, p)
		}
	}
	removed = make([]int, 0)
	for p := range inBaseline {
		if _, ok := inCurrent[p]; !ok {
			removed = append(removed, p)
		}
	}
	sort.Ints(added)
	sort.Ints(removed)
	return added, removed
}

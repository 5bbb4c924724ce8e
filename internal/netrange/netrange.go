// Package netrange expands CIDR range specifications into the ordered set of
// candidate host addresses to probe, and parses port specifications into
// de-duplicated port sets. It performs no network activity.
package netrange

import (
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/kallerud/driftscan/internal/errors"
)

const (
	// Limit expansion to /16 or smaller networks.
	maxHostBits = 16

	// Prefixes at or below this length carry distinct network and
	// broadcast addresses which are excluded from expansion. /31 and /32
	// expand to every address they contain.
	maxSubnettedPrefix = 30

	expectedPortRangeParts = 2
	maxPort                = 65535
	addressBits            = 32
)

// Expand parses a CIDR-style range specification and returns the ordered
// sequence of candidate host addresses, ascending by numeric value. For
// prefixes of /30 and shorter the network and broadcast addresses are
// excluded; /31 and /32 expand to all contained addresses. Identical input
// always yields the identical sequence.
func Expand(spec string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(spec))
	if err != nil {
		return nil, errors.ErrInvalidRange(spec, err)
	}
	if !prefix.Addr().Is4() {
		return nil, errors.NewScanErrorWithTarget(errors.CodeTargetInvalid,
			"only IPv4 ranges are supported", spec)
	}

	prefix = prefix.Masked()
	hostBits := addressBits - prefix.Bits()
	if hostBits > maxHostBits {
		return nil, errors.NewScanErrorWithTarget(errors.CodeTargetInvalid,
			fmt.Sprintf("range too large: /%d (minimum prefix is /%d)",
				prefix.Bits(), addressBits-maxHostBits), spec)
	}

	total := 1 << hostBits
	addrs := make([]netip.Addr, 0, total)
	addr := prefix.Addr()
	for i := 0; i < total; i++ {
		addrs = append(addrs, addr)
		addr = addr.Next()
	}

	if prefix.Bits() <= maxSubnettedPrefix {
		addrs = addrs[1 : len(addrs)-1]
	}
	return addrs, nil
}

// AutoDetect returns the CIDR of the first non-loopback IPv4 network
// attached to a local interface that is up. Used when no range is given on
// the command line.
func AutoDetect() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", errors.WrapScanError(errors.CodeTargetInvalid,
			"failed to enumerate network interfaces", err)
	}

	for i := range ifaces {
		iface := &ifaces[i]
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
			network := &net.IPNet{IP: ipnet.IP.Mask(ipnet.Mask), Mask: ipnet.Mask}
			return network.String(), nil
		}
	}
	return "", errors.NewScanError(errors.CodeTargetInvalid,
		"no usable IPv4 interface found for subnet auto-detection")
}

// ParsePorts parses a comma-separated port specification such as
// "22,80,443" or "22,8000-8010" into a sorted, de-duplicated port set.
func ParsePorts(spec string) ([]int, error) {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			if err := parsePortRange(part, seen); err != nil {
				return nil, errors.ErrInvalidPorts(spec, err)
			}
			continue
		}
		port, err := parseSinglePort(part)
		if err != nil {
			return nil, errors.ErrInvalidPorts(spec, err)
		}
		seen[port] = struct{}{}
	}

	if len(seen) == 0 {
		return nil, errors.NewScanErrorWithTarget(errors.CodeTargetInvalid,
			"no ports specified", spec)
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

// parsePortRange parses a range like "8000-8010" into seen.
func parsePortRange(part string, seen map[int]struct{}) error {
	rangeParts := strings.Split(part, "-")
	if len(rangeParts) != expectedPortRangeParts {
		return fmt.Errorf("invalid port range format: %s", part)
	}
	start, err := parseSinglePort(rangeParts[0])
	if err != nil {
		return err
	}
	end, err := parseSinglePort(rangeParts[1])
	if err != nil {
		return err
	}
	if start > end {
		return fmt.Errorf("invalid port range %s: start port exceeds end port", part)
	}
	for p := start; p <= end; p++ {
		seen[p] = struct{}{}
	}
	return nil
}

// parseSinglePort parses and bounds-checks a single port.
func parseSinglePort(part string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(part))
	if err != nil {
		return 0, fmt.Errorf("invalid port: %s", part)
	}
	if port < 1 || port > maxPort {
		return 0, fmt.Errorf("invalid port: %d (must be 1-%d)", port, maxPort)
	}
	return port, nil
}

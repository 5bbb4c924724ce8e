//go:build !windows

package discovery

import "os"

// canOpenRawSocket reports whether the process can open the raw capture
// handle ARP discovery needs. Unix implementation: require euid == 0.
func canOpenRawSocket() bool {
	return os.Geteuid() == 0
}

//go:build windows

package discovery

// canOpenRawSocket reports whether the process can open the raw capture
// handle ARP discovery needs. On Windows the capture driver mediates
// access, so the open call itself is the authoritative check.
func canOpenRawSocket() bool {
	return true
}

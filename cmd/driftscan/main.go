// Driftscan is a local network scanner with change detection. It discovers
// live hosts on a network range via ARP, probes them for open TCP ports,
// and compares successive runs to surface drift.
package main

import (
	"github.com/kallerud/driftscan/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}

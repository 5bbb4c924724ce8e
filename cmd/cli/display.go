package cli

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/kallerud/driftscan/internal/diff"
	"github.com/kallerud/driftscan/internal/scan"
)

// consoleReporter prints scan progress to the terminal.
type consoleReporter struct {
	w io.Writer
}

func newConsoleReporter(w io.Writer) *consoleReporter {
	return &consoleReporter{w: w}
}

func (r *consoleReporter) ScanStarted(network string, candidates int) {
	fmt.Fprintf(r.w, "Scanning %s (%d addresses)...\n", network, candidates)
}

func (r *consoleReporter) HostsFound(n int) {
	fmt.Fprintf(r.w, "Found %d live hosts\n", n)
}

func (r *consoleReporter) ScanningHost(host netip.Addr) {
	fmt.Fprintf(r.w, "Probing %s...\n", host)
}

// printResults displays scan results in a table format.
func printResults(results scan.ResultSet) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Host", "Open Ports", "Scanned At")

	for i := range results {
		rec := &results[i]
		_ = table.Append([]string{
			rec.Host.String(),
			formatPorts(rec.OpenPorts),
			rec.ScannedAt.Format("2006-01-02 15:04:05"),
		})
	}

	_ = table.Render()
}

// printChanges displays a change set in a table format.
func printChanges(changes diff.ChangeSet) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Host", "Opened", "Closed", "Detected At")

	for i := range changes {
		ch := &changes[i]
		_ = table.Append([]string{
			ch.Host.String(),
			formatPorts(ch.AddedPorts),
			formatPorts(ch.RemovedPorts),
			ch.DetectedAt.Format("2006-01-02 15:04:05"),
		})
	}

	_ = table.Render()
}

// formatPorts renders a port list for display. An empty list shows as "-".
func formatPorts(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}

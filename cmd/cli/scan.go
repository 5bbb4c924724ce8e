package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kallerud/driftscan/internal/config"
	"github.com/kallerud/driftscan/internal/diff"
	"github.com/kallerud/driftscan/internal/discovery"
	"github.com/kallerud/driftscan/internal/errors"
	"github.com/kallerud/driftscan/internal/metrics"
	"github.com/kallerud/driftscan/internal/netrange"
	"github.com/kallerud/driftscan/internal/output"
	"github.com/kallerud/driftscan/internal/probe"
	"github.com/kallerud/driftscan/internal/scan"
	"github.com/kallerud/driftscan/internal/store"
)

// Exit codes for the scan command.
const (
	exitOK = 0
	// exitNoHosts signals a completed sweep that found no live hosts.
	exitNoHosts = 2
)

var (
	scanNetwork     string
	scanInterface   string
	scanPorts       string
	scanOutput      string
	scanBaseline    string
	scanTimeout     time.Duration
	scanConcurrency int
	scanWait        time.Duration
	scanHistory     bool
	scanNoCSV       bool
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Sweep a network range and probe live hosts for open ports",
	Long: `Sweep a network range for live hosts using ARP, then probe each live
host for open TCP ports. Results are written as JSON (and optionally
CSV), and can be compared against a baseline from a previous run to
report newly opened and closed ports.

Discovery sends raw ARP frames and therefore needs root (or equivalent
packet capture privileges). When no network is given the local subnet
of the default interface is scanned.`,
	Example: `  driftscan scan
  driftscan scan --network 192.168.1.0/24
  driftscan scan --network 10.0.0.0/24 --ports 22,80,443,8000-8100
  driftscan scan --network 192.168.1.0/24 --baseline scan.json --output scan
  driftscan scan --network 192.168.1.0/24 --history`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanNetwork, "network", "", "Network range to scan in CIDR notation (default: auto-detect)")
	scanCmd.Flags().StringVar(&scanInterface, "interface", "", "Network interface to use for discovery")
	scanCmd.Flags().StringVar(&scanPorts, "ports", config.DefaultPorts, "Ports to probe (comma-separated, ranges allowed)")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", config.DefaultOutputPrefix, "Output file prefix")
	scanCmd.Flags().StringVar(&scanBaseline, "baseline", "", "Baseline JSON file to compare against")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", config.DefaultProbeTimeout, "Timeout per port probe")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", config.DefaultConcurrency, "Maximum concurrent probes per host")
	scanCmd.Flags().DurationVar(&scanWait, "wait", config.DefaultWaitWindow, "How long to wait for discovery replies")
	scanCmd.Flags().BoolVar(&scanHistory, "history", false, "Record this run in the scan history database")
	scanCmd.Flags().BoolVar(&scanNoCSV, "no-csv", false, "Skip the CSV export")
}

func runScan(cmd *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyScanFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	network := cfg.Scan.Network
	if network == "" {
		network, err = netrange.AutoDetect()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not detect local subnet: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("No network specified, scanning local subnet %s\n", network)
	}

	ports, err := netrange.ParsePorts(cfg.Scan.Ports)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	discoverer := discovery.NewEngine(discovery.Config{
		Interface:  cfg.Scan.Interface,
		WaitWindow: cfg.Scan.WaitWindow,
	})
	prober := probe.NewEngine(probe.Config{
		Timeout:     cfg.Scan.ProbeTimeout,
		Concurrency: cfg.Scan.Concurrency,
	})

	orch := scan.NewOrchestrator(discoverer, prober)
	orch.SetReporter(newConsoleReporter(os.Stdout))

	startedAt := time.Now()
	results, err := orch.Run(ctx, network, ports)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
		if errors.IsCode(err, errors.CodePermission) {
			fmt.Fprintln(os.Stderr, "Hint: discovery needs raw socket access, try running as root")
		}
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No live hosts found")
		os.Exit(exitNoHosts)
	}

	printResults(results)

	jsonPath := cfg.Output.Prefix + ".json"
	if err := output.WriteJSON(results, jsonPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", jsonPath, err)
		os.Exit(1)
	}
	fmt.Printf("Results written to %s\n", jsonPath)

	if cfg.Output.CSV {
		csvPath := cfg.Output.Prefix + ".csv"
		if err := output.WriteCSV(results, csvPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", csvPath, err)
			os.Exit(1)
		}
		fmt.Printf("Results written to %s\n", csvPath)
	}

	compareBaseline(cfg, results)

	if cfg.HistoryEnabled() {
		recordRun(ctx, cfg, network, startedAt, results)
	}

	os.Exit(exitOK)
}

// applyScanFlags overrides file configuration with any flags the user set
// explicitly.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("network") {
		cfg.Scan.Network = scanNetwork
	}
	if cmd.Flags().Changed("interface") {
		cfg.Scan.Interface = scanInterface
	}
	if cmd.Flags().Changed("ports") {
		cfg.Scan.Ports = scanPorts
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Prefix = scanOutput
	}
	if cmd.Flags().Changed("baseline") {
		cfg.Output.Baseline = scanBaseline
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Scan.ProbeTimeout = scanTimeout
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Scan.Concurrency = scanConcurrency
	}
	if cmd.Flags().Changed("wait") {
		cfg.Scan.WaitWindow = scanWait
	}
	if cmd.Flags().Changed("history") {
		cfg.History.Enabled = scanHistory
	}
	if cmd.Flags().Changed("no-csv") {
		cfg.Output.CSV = !scanNoCSV
	}
}

// compareBaseline diffs the current results against the configured baseline
// file, if any. An unreadable baseline is reported but never fails the run.
func compareBaseline(cfg *config.Config, results scan.ResultSet) {
	if cfg.Output.Baseline == "" {
		return
	}

	baseline, err := output.LoadBaseline(cfg.Output.Baseline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: skipping comparison: %v\n", err)
		return
	}

	changes := diff.Diff(results, baseline)
	metrics.GetGlobalMetrics().IncrementChangedHosts(len(changes))
	if len(changes) == 0 {
		fmt.Println("No changes since baseline")
		return
	}

	printChanges(changes)

	changesPath := cfg.Output.Prefix + "_changes.json"
	if err := output.WriteChanges(changes, changesPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write %s: %v\n", changesPath, err)
		return
	}
	fmt.Printf("Changes written to %s\n", changesPath)
}

// recordRun appends the run to the scan history database, diffing against
// the previous run for the same network first.
func recordRun(ctx context.Context, cfg *config.Config, network string,
	startedAt time.Time, results scan.ResultSet) {
	hist, err := store.Open(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: scan history unavailable: %v\n", err)
		return
	}
	defer hist.Close()

	baseline, err := hist.LatestBaseline(ctx, network)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load previous run: %v\n", err)
	} else if baseline != nil {
		if changes := diff.Diff(results, baseline); len(changes) > 0 {
			fmt.Println("Changes since previous recorded run:")
			printChanges(changes)
		}
	}

	run, err := hist.SaveRun(ctx, network, startedAt, results)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record run: %v\n", err)
		return
	}
	fmt.Printf("Run %s recorded in %s\n", run.ID, cfg.History.Path)
}

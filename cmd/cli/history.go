package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kallerud/driftscan/internal/store"
)

const defaultHistoryLimit = 20

var historyLimit int

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded scan runs",
	Long: `List runs recorded in the scan history database, newest first. Runs are
recorded by "driftscan scan --history".`,
	Run: runHistory,
}

// historyShowCmd shows the stored results of one run.
var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the results recorded for a run",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryShow,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.PersistentFlags().IntVar(&historyLimit, "limit", defaultHistoryLimit, "Maximum number of runs to list")
}

func openHistory() *store.Store {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	hist, err := store.Open(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return hist
}

func runHistory(_ *cobra.Command, _ []string) {
	hist := openHistory()
	defer hist.Close()

	runs, err := hist.ListRuns(context.Background(), historyLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Network", "Started", "Duration", "Hosts")

	for _, run := range runs {
		_ = table.Append([]string{
			run.ID.String(),
			run.Network,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.CompletedAt.Sub(run.StartedAt).Round(10 * time.Millisecond).String(),
			strconv.Itoa(run.HostsFound),
		})
	}

	_ = table.Render()
}

func runHistoryShow(_ *cobra.Command, args []string) {
	runID, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid run id %q: %v\n", args[0], err)
		os.Exit(1)
	}

	hist := openHistory()
	defer hist.Close()

	results, err := hist.RunResults(context.Background(), runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No results recorded for this run")
		return
	}

	printResults(results)
}

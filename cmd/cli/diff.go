package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kallerud/driftscan/internal/diff"
	"github.com/kallerud/driftscan/internal/output"
)

var diffOutput string

// diffCmd represents the diff command.
var diffCmd = &cobra.Command{
	Use:   "diff <current.json> <baseline.json>",
	Short: "Compare two saved result sets",
	Long: `Compare two previously saved JSON result sets and report ports that
opened or closed between them. Hosts present in the baseline but absent
from the current results are not reported.`,
	Example: `  driftscan diff scan.json yesterday.json
  driftscan diff scan.json yesterday.json --output changes.json`,
	Args: cobra.ExactArgs(2),
	Run:  runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVarP(&diffOutput, "output", "o", "", "Write the change set to a JSON file")
}

func runDiff(_ *cobra.Command, args []string) {
	current, err := output.LoadBaseline(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	baseline, err := output.LoadBaseline(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	changes := diff.Diff(current, baseline)
	if len(changes) == 0 {
		fmt.Println("No changes")
		return
	}

	printChanges(changes)

	if diffOutput != "" {
		if err := output.WriteChanges(changes, diffOutput); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", diffOutput, err)
			os.Exit(1)
		}
		fmt.Printf("Changes written to %s\n", diffOutput)
	}
}

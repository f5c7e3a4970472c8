package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd lists recent backup runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent backup runs",
	Long: `List the recorded backup runs, newest first.

The history is bounded; old entries are evicted as new runs complete.

Examples:
  # Show the full recorded history
  membership-backup history --config config.yaml

  # Show the last three runs
  membership-backup history --limit 3`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "maximum number of entries to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	entries, err := eng.ledger.List(historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No backup runs recorded")
		return nil
	}

	fmt.Printf("%-20s  %-13s  %-10s  %s\n", "DATE", "TYPE", "SIZE", "RESULT")
	for _, entry := range entries {
		result := entry.Artifact
		if entry.Error != "" {
			result = color.RedString("failed: %s", entry.Error)
		}
		fmt.Printf("%-20s  %-13s  %-10s  %s\n",
			entry.Date.Format("2006-01-02 15:04:05"),
			entry.Type, entry.Size, result)
	}
	return nil
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded operations and their outcomes",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ensureDirectories(cfg.JournalPath); err != nil {
		return err
	}

	jrnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return errors.Wrap(err, "journal init failed")
	}
	defer jrnl.Close()

	runs, err := jrnl.List()
	if err != nil {
		return errors.Wrap(err, "history failed")
	}

	if len(runs) == 0 {
		fmt.Println("No operations recorded")
		return nil
	}

	fmt.Printf("%-6s %-12s %-10s %-20s %-30s\n", "ID", "OPERATION", "STATUS", "STARTED", "SNAPSHOT")
	fmt.Println("----------------------------------------------------------------------------------")

	for _, run := range runs {
		snapshot := run.SnapshotPath
		if snapshot == "" {
			snapshot = "-"
		}
		fmt.Printf("%-6d %-12s %-10s %-20s %-30s\n",
			run.ID, run.Operation, run.Status, run.CreatedAt, snapshot)
	}

	return nil
}

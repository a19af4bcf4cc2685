package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/journal"
)

var unmountCmd = &cobra.Command{
	Use:   "unmount",
	Short: "Unmount and close all configured devices",
	Long: `Unmount every configured device in reverse configured order, then
close them in reverse configured order. All unmounts complete before the
first close, so multi-device filesystems tear down safely.`,
	RunE: runUnmount,
}

func init() {
	rootCmd.AddCommand(unmountCmd)
}

func runUnmount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

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

	orch, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}

	runID, err := jrnl.Begin(journal.OpDeactivate)
	if err != nil {
		return err
	}

	if err := orch.Deactivate(ctx); err != nil {
		jrnl.Fail(runID, err.Error())
		return err
	}

	if err := jrnl.Succeed(runID, ""); err != nil {
		return err
	}

	fmt.Println("✅ All devices unmounted and closed.")
	return nil
}

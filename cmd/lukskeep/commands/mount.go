package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/superfly/fsm"

	"github.com/lukskeep/lukskeep/pkg/errors"
	appfsm "github.com/lukskeep/lukskeep/pkg/fsm"
	"github.com/lukskeep/lukskeep/pkg/journal"
)

// fsmMaxRetries caps FSM transition re-runs. Every fatal failure aborts the
// machine, so this is a backstop, not a retry policy.
const fsmMaxRetries = 1

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Open and mount all configured devices, then snapshot",
	Long: `Open every configured LUKS device, mount the ones with a mount
point, and, when a snapshot root is configured, prune aged snapshots and
create a fresh one from the first device's mount point.`,
	RunE: runMount,
}

func init() {
	rootCmd.AddCommand(mountCmd)
}

func runMount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ensureDirectories(cfg.JournalPath, cfg.FSMDBPath); err != nil {
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

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		return errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	machine := appfsm.NewMachine(orch, jrnl, fsmMaxRetries)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return errors.Wrap(err, "FSM register failed")
	}

	req := &appfsm.ActivateRequest{ConfigPath: configPath}
	resp := &appfsm.ActivateResponse{}

	runKey := fmt.Sprintf("activate-%d", time.Now().UnixNano())
	version, err := start(ctx, runKey, fsm.NewRequest(req, resp))
	if err != nil {
		return errors.Wrap(err, "FSM start failed")
	}

	if err := manager.Wait(ctx, version); err != nil {
		return errors.Wrap(err, "activation failed")
	}

	if resp.SnapshotPath != "" {
		fmt.Printf("Snapshot created at: %s\n", resp.SnapshotPath)
	}
	fmt.Printf("✅ All devices mounted (%d opened, %d mounted).\n", resp.Opened, resp.Mounted)

	return nil
}

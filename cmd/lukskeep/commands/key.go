package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/journal"
	"github.com/lukskeep/lukskeep/pkg/keystore"
	"github.com/lukskeep/lukskeep/pkg/security"
	"github.com/lukskeep/lukskeep/pkg/system"
)

var keyRotate bool

var keyCmd = &cobra.Command{
	Use:   "key <device>",
	Short: "Ensure or rotate the encrypted passphrase for a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runKey,
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.Flags().BoolVar(&keyRotate, "rotate", false,
		"rotate (re-encrypt) the passphrase for the device")
}

func runKey(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	device := args[0]

	if err := security.NewValidator().ValidateMappingName(device); err != nil {
		return err
	}

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

	run := system.NewExecRunner()
	prompt := keystore.TerminalPrompter{}

	store, err := newKeyStore(ctx, cfg, run, prompt)
	if err != nil {
		return errors.Wrap(err, "keystore init failed")
	}
	keys := keystore.NewManager(store, prompt)

	operation := journal.OpKey
	if keyRotate {
		operation = journal.OpRotate
	}
	runID, err := jrnl.Begin(operation)
	if err != nil {
		return err
	}

	if keyRotate {
		rotated, err := keys.Rotate(ctx, device)
		if err != nil {
			jrnl.Fail(runID, err.Error())
			return err
		}
		if !rotated {
			jrnl.Fail(runID, "aborted by user")
			fmt.Println("Aborted rotation.")
			return nil
		}
		fmt.Printf("✅ Credential for %q has been rotated.\n", device)
	} else {
		if err := keys.EnsureExists(ctx, device); err != nil {
			jrnl.Fail(runID, err.Error())
			return err
		}
		fmt.Printf("✅ Encrypted credential present for %q.\n", device)
	}

	return jrnl.Succeed(runID, "")
}

package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lukskeep/lukskeep/internal/config"
	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/hooks"
	"github.com/lukskeep/lukskeep/pkg/keystore"
	"github.com/lukskeep/lukskeep/pkg/orchestrator"
	"github.com/lukskeep/lukskeep/pkg/snapshots"
	"github.com/lukskeep/lukskeep/pkg/system"
)

// loadConfig loads and validates the configuration from --config or the
// default location.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config invalid")
	}
	return cfg, nil
}

// ensureDirectories creates the state directories the given paths live in.
func ensureDirectories(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return errors.Wrap(err, "failed to create state directory")
		}
	}
	return nil
}

// newKeyStore builds the configured credential-store backend.
func newKeyStore(ctx context.Context, cfg *config.Config, run system.Runner, prompt keystore.Prompter) (keystore.Store, error) {
	switch cfg.KeyBackend {
	case config.BackendFile:
		return keystore.NewGPGStore(cfg.KeyDir, cfg.GPGRecipient, run)
	case config.BackendS3:
		return keystore.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix, cfg.GPGRecipient, run)
	case config.BackendAES:
		return keystore.NewAESStore(cfg.KeyDir, prompt)
	default:
		return nil, fmt.Errorf("unknown key_backend %q", cfg.KeyBackend)
	}
}

// buildOrchestrator wires the runner, keystore, hooks and snapshot manager
// for the configured device set.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, error) {
	run := system.NewExecRunner()
	prompt := keystore.TerminalPrompter{}

	store, err := newKeyStore(ctx, cfg, run, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "keystore init failed")
	}
	keys := keystore.NewManager(store, prompt)
	hookRunner := hooks.NewRunner(cfg.Hooks, run)

	var snaps *snapshots.Manager
	if cfg.SnapshotRoot != "" {
		snaps, err = snapshots.NewManager(cfg.SnapshotRoot, cfg.RetentionDays, run)
		if err != nil {
			return nil, errors.Wrap(err, "snapshot manager init failed")
		}
	}

	return orchestrator.New(cfg, keys, hookRunner, snaps, run), nil
}

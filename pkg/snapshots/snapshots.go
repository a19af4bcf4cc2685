// Package snapshots prunes aged snapshot directories and creates new
// read-only ones through the external btrfs tooling. Snapshot directories are
// named by creation timestamp; anything under the snapshot root that does not
// parse as a timestamp is never touched.
package snapshots

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/system"
)

// TimestampLayout is the directory-name format for automatic snapshots.
const TimestampLayout = "2006-01-02_15-04-05"

// Manager prunes and creates snapshots under a fixed root directory.
type Manager struct {
	root      string
	retention time.Duration
	run       system.Runner

	// now is injected by tests to pin the clock.
	now func() time.Time
}

// NewManager creates a snapshot manager for root, keeping snapshots for
// retentionDays. The root directory is created if missing.
func NewManager(root string, retentionDays int, run system.Runner) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create snapshot root")
	}

	return &Manager{
		root:      root,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		run:       run,
		now:       time.Now,
	}, nil
}

// PruneOld deletes snapshots whose age strictly exceeds the retention window.
// Entries whose names do not parse as timestamps are skipped, never deleted.
// Each deletion is independent; the first failure aborts the prune.
func (m *Manager) PruneOld(ctx context.Context) error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return &errors.SnapshotError{Op: "prune", Path: m.root, Detail: err.Error()}
	}

	now := m.now()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		ts, err := time.ParseInLocation(TimestampLayout, entry.Name(), time.Local)
		if err != nil {
			// Not one of ours.
			continue
		}

		if now.Sub(ts) <= m.retention {
			continue
		}

		path := filepath.Join(m.root, entry.Name())
		slog.Info("snapshot_prune", "path", path, "age_days", int(now.Sub(ts).Hours()/24))

		res, err := m.run.RunPrivileged(ctx, "btrfs", "subvolume", "delete", path)
		if err != nil {
			return &errors.SnapshotError{Op: "prune", Path: path, Detail: err.Error()}
		}
		if res.ExitCode != 0 {
			slog.Error("snapshot_prune_failed", "path", path, "exit_code", res.ExitCode, "stderr", res.Stderr)
			return &errors.SnapshotError{Op: "prune", Path: path, Detail: res.Stderr}
		}
	}

	return nil
}

// CreateAutoSnapshot creates a read-only snapshot of source named after the
// current timestamp and returns the destination path. An existing destination
// is a failure, never silently overwritten.
func (m *Manager) CreateAutoSnapshot(ctx context.Context, source string) (string, error) {
	dest := filepath.Join(m.root, m.now().Format(TimestampLayout))

	if _, err := os.Stat(dest); err == nil {
		slog.Error("snapshot_destination_exists", "path", dest)
		return "", &errors.SnapshotError{Op: "create", Path: dest, Detail: "destination already exists"}
	}

	slog.Info("snapshot_create", "source", source, "dest", dest)

	res, err := m.run.RunPrivileged(ctx, "btrfs", "subvolume", "snapshot", "-r", source, dest)
	if err != nil {
		return "", &errors.SnapshotError{Op: "create", Path: dest, Detail: err.Error()}
	}
	if res.ExitCode != 0 {
		slog.Error("snapshot_create_failed", "dest", dest, "exit_code", res.ExitCode, "stderr", res.Stderr)
		return "", &errors.SnapshotError{Op: "create", Path: dest, Detail: res.Stderr}
	}

	return dest, nil
}

// Package orchestrator sequences device lifecycle operations over the whole
// configured device set. Devices are brought up in configured order (all
// opened before any is mounted, so multi-device filesystems see every member)
// and torn down in reverse order (all unmounted before any member is closed).
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/lukskeep/lukskeep/internal/config"
	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/hooks"
	"github.com/lukskeep/lukskeep/pkg/keystore"
	"github.com/lukskeep/lukskeep/pkg/luks"
	"github.com/lukskeep/lukskeep/pkg/snapshots"
	"github.com/lukskeep/lukskeep/pkg/system"
)

// Orchestrator composes the lifecycle of all configured devices, the
// keystore, the hook runner, and optional snapshot retention.
type Orchestrator struct {
	cfg     *config.Config
	keys    *keystore.Manager
	hooks   *hooks.Runner
	snaps   *snapshots.Manager
	devices []*luks.Device
}

// New creates an orchestrator. snaps may be nil when no snapshot root is
// configured.
func New(cfg *config.Config, keys *keystore.Manager, hookRunner *hooks.Runner, snaps *snapshots.Manager, run system.Runner) *Orchestrator {
	devices := make([]*luks.Device, 0, len(cfg.Devices))
	for _, spec := range cfg.Devices {
		devices = append(devices, luks.NewDevice(spec, keys, hookRunner, run))
	}

	return &Orchestrator{
		cfg:     cfg,
		keys:    keys,
		hooks:   hookRunner,
		snaps:   snaps,
		devices: devices,
	}
}

// Devices returns the lifecycle wrappers in configured order.
func (o *Orchestrator) Devices() []*luks.Device {
	return o.devices
}

// Begin fires the collection-wide pre-activation hook.
func (o *Orchestrator) Begin(ctx context.Context) error {
	return o.hooks.Run(ctx, hooks.BeforeMountAll, nil)
}

// EnsureKeys makes sure every device has a stored credential, prompting for
// the missing ones.
func (o *Orchestrator) EnsureKeys(ctx context.Context) error {
	for _, dev := range o.devices {
		if err := o.keys.EnsureExists(ctx, dev.Name()); err != nil {
			return err
		}
	}
	return nil
}

// OpenAll opens every device in configured order.
func (o *Orchestrator) OpenAll(ctx context.Context) error {
	for _, dev := range o.devices {
		if err := dev.Open(ctx); err != nil {
			return err
		}
	}
	return nil
}

// MountAll mounts every device that has a mount point, in configured order.
func (o *Orchestrator) MountAll(ctx context.Context) error {
	for _, dev := range o.devices {
		if err := dev.Mount(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot prunes aged snapshots and creates a fresh one from the first
// device's mount point. It is a no-op when no snapshot root is configured,
// and returns the new snapshot path otherwise.
func (o *Orchestrator) Snapshot(ctx context.Context) (string, error) {
	if o.snaps == nil || len(o.devices) == 0 {
		return "", nil
	}

	source := o.devices[0].MountPoint()
	if source == "" {
		return "", &errors.SnapshotError{
			Op:     "create",
			Path:   o.cfg.SnapshotRoot,
			Detail: "first device has no mount point to snapshot from",
		}
	}

	if err := o.snaps.PruneOld(ctx); err != nil {
		return "", err
	}

	return o.snaps.CreateAutoSnapshot(ctx, source)
}

// Finish fires the collection-wide post-activation hook.
func (o *Orchestrator) Finish(ctx context.Context) error {
	return o.hooks.Run(ctx, hooks.AfterMountAll, nil)
}

// Activate runs the full activation sequence: pre hook, ensure credentials,
// open all, mount all, snapshot, post hook. It returns the snapshot path when
// one was created.
func (o *Orchestrator) Activate(ctx context.Context) (string, error) {
	if err := o.Begin(ctx); err != nil {
		return "", err
	}
	if err := o.EnsureKeys(ctx); err != nil {
		return "", err
	}
	if err := o.OpenAll(ctx); err != nil {
		return "", err
	}
	if err := o.MountAll(ctx); err != nil {
		return "", err
	}
	snapshotPath, err := o.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	if err := o.Finish(ctx); err != nil {
		return snapshotPath, err
	}

	slog.Info("activate_complete", "devices", len(o.devices), "snapshot", snapshotPath)
	return snapshotPath, nil
}

// Deactivate tears everything down: pre hook, unmount all devices in reverse
// configured order, close all in reverse configured order, post hook. All
// unmounts complete before the first close.
func (o *Orchestrator) Deactivate(ctx context.Context) error {
	if err := o.hooks.Run(ctx, hooks.BeforeUnmountAll, nil); err != nil {
		return err
	}

	for i := len(o.devices) - 1; i >= 0; i-- {
		if err := o.devices[i].Unmount(ctx); err != nil {
			return err
		}
	}
	for i := len(o.devices) - 1; i >= 0; i-- {
		if err := o.devices[i].Close(ctx); err != nil {
			return err
		}
	}

	if err := o.hooks.Run(ctx, hooks.AfterUnmountAll, nil); err != nil {
		return err
	}

	slog.Info("deactivate_complete", "devices", len(o.devices))
	return nil
}

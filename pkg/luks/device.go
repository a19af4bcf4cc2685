// Package luks drives the lifecycle of a single encrypted block device:
// open (decrypt) and mount, with the symmetric teardown. The process keeps no
// state of its own; every decision re-queries the external device-mapper and
// mount tables.
package luks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lukskeep/lukskeep/internal/config"
	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/hooks"
	"github.com/lukskeep/lukskeep/pkg/keystore"
	"github.com/lukskeep/lukskeep/pkg/system"
)

// Device binds one device spec to the shared keystore, hook runner and
// process-execution capability.
type Device struct {
	spec  config.Device
	keys  *keystore.Manager
	hooks *hooks.Runner
	run   system.Runner
}

// NewDevice creates a lifecycle wrapper for spec.
func NewDevice(spec config.Device, keys *keystore.Manager, hookRunner *hooks.Runner, run system.Runner) *Device {
	return &Device{spec: spec, keys: keys, hooks: hookRunner, run: run}
}

// Name returns the mapping name.
func (d *Device) Name() string { return d.spec.Name }

// MountPoint returns the configured mount point, empty when the device is
// opened but never mounted.
func (d *Device) MountPoint() string { return d.spec.MountPoint }

// IsOpen queries whether the mapping is currently open.
func (d *Device) IsOpen(ctx context.Context) bool {
	res, err := d.run.Run(ctx, "cryptsetup", "status", d.spec.Name)
	return err == nil && res.ExitCode == 0
}

// IsMounted queries whether the device is mounted at its mount point.
func (d *Device) IsMounted(ctx context.Context) bool {
	if d.spec.MountPoint == "" {
		return false
	}
	res, err := d.run.Run(ctx, "mountpoint", "-q", d.spec.MountPoint)
	return err == nil && res.ExitCode == 0
}

// Open decrypts the device if it is not already open. The passphrase is fed
// to cryptsetup on stdin and held only for the duration of the call.
//
// When the open reports that the mapping name already exists even though the
// status query did not report it open, the stale mapping is forcibly closed
// and the open retried exactly once; if the retry also fails, the original
// failure is surfaced.
func (d *Device) Open(ctx context.Context) error {
	if d.IsOpen(ctx) {
		slog.Info("device_already_open", "name", d.spec.Name)
		return nil
	}

	if err := d.hooks.Run(ctx, hooks.BeforeOpen, &d.spec); err != nil {
		return err
	}

	pw, err := d.keys.Get(ctx, d.spec.Name)
	if err != nil {
		return err
	}

	slog.Info("device_open_start", "name", d.spec.Name, "devnode", d.spec.Devnode)

	res, err := d.run.RunPrivilegedWithInput(ctx, pw+"\n",
		"cryptsetup", "luksOpen", d.spec.Devnode, d.spec.Name)
	if err != nil {
		return errors.Wrap(err, "failed to run cryptsetup")
	}

	if res.ExitCode != 0 {
		openErr := fmt.Errorf("cryptsetup luksOpen failed with exit code %d: %s", res.ExitCode, res.Stderr)

		if !strings.Contains(res.Stderr, fmt.Sprintf("Device %s already exists", d.spec.Name)) {
			return openErr
		}

		slog.Warn("mapping_name_conflict",
			"name", d.spec.Name,
			"detail", "mapping exists but is not reported as an open volume, closing and retrying once")

		if !d.recoverConflict(ctx, pw) {
			return &errors.DeviceConflictError{Name: d.spec.Name, Err: openErr}
		}
	}

	slog.Info("device_opened", "name", d.spec.Name)
	return d.hooks.Run(ctx, hooks.AfterOpen, &d.spec)
}

// recoverConflict closes the stale mapping and retries the open once.
func (d *Device) recoverConflict(ctx context.Context, pw string) bool {
	closeRes, err := d.run.RunPrivileged(ctx, "cryptsetup", "luksClose", d.spec.Name)
	if err != nil || closeRes.ExitCode != 0 {
		slog.Error("stale_mapping_close_failed", "name", d.spec.Name)
		return false
	}

	retry, err := d.run.RunPrivilegedWithInput(ctx, pw+"\n",
		"cryptsetup", "luksOpen", d.spec.Devnode, d.spec.Name)
	if err != nil || retry.ExitCode != 0 {
		slog.Error("device_open_retry_failed", "name", d.spec.Name)
		return false
	}

	return true
}

// Close re-encrypts the device if it is currently open.
func (d *Device) Close(ctx context.Context) error {
	if !d.IsOpen(ctx) {
		slog.Info("device_already_closed", "name", d.spec.Name)
		return nil
	}

	if err := d.hooks.Run(ctx, hooks.BeforeClose, &d.spec); err != nil {
		return err
	}

	res, err := d.run.RunPrivileged(ctx, "cryptsetup", "luksClose", d.spec.Name)
	if err != nil {
		return errors.Wrap(err, "failed to run cryptsetup")
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("cryptsetup luksClose failed with exit code %d: %s", res.ExitCode, res.Stderr)
	}

	slog.Info("device_closed", "name", d.spec.Name)
	return d.hooks.Run(ctx, hooks.AfterClose, &d.spec)
}

// Mount mounts the opened mapping at the configured mount point, creating the
// directory if needed. A device without a mount point is never mounted.
func (d *Device) Mount(ctx context.Context) error {
	if d.spec.MountPoint == "" {
		return nil
	}
	if d.IsMounted(ctx) {
		slog.Info("device_already_mounted", "name", d.spec.Name, "mount_point", d.spec.MountPoint)
		return nil
	}

	if err := d.hooks.Run(ctx, hooks.BeforeMount, &d.spec); err != nil {
		return err
	}

	if err := os.MkdirAll(d.spec.MountPoint, 0755); err != nil {
		return errors.Wrap(err, "failed to create mount point")
	}

	slog.Info("device_mount_start", "name", d.spec.Name, "mount_point", d.spec.MountPoint)

	res, err := d.run.RunPrivileged(ctx, "mount", MapperPath(d.spec.Name), d.spec.MountPoint)
	if err != nil {
		return errors.Wrap(err, "failed to run mount")
	}
	if res.ExitCode != 0 {
		slog.Error("device_mount_failed", "name", d.spec.Name, "exit_code", res.ExitCode, "stderr", res.Stderr)
		return &errors.MountError{Name: d.spec.Name, MountPoint: d.spec.MountPoint, Output: res.Stderr}
	}

	slog.Info("device_mounted", "name", d.spec.Name, "mount_point", d.spec.MountPoint)
	return d.hooks.Run(ctx, hooks.AfterMount, &d.spec)
}

// Unmount unmounts the device from its mount point, if mounted.
func (d *Device) Unmount(ctx context.Context) error {
	if !d.IsMounted(ctx) {
		return nil
	}

	if err := d.hooks.Run(ctx, hooks.BeforeUnmount, &d.spec); err != nil {
		return err
	}

	res, err := d.run.RunPrivileged(ctx, "umount", d.spec.MountPoint)
	if err != nil {
		return errors.Wrap(err, "failed to run umount")
	}
	if res.ExitCode != 0 {
		slog.Error("device_unmount_failed", "name", d.spec.Name, "exit_code", res.ExitCode, "stderr", res.Stderr)
		return &errors.UnmountError{MountPoint: d.spec.MountPoint, Output: res.Stderr}
	}

	slog.Info("device_unmounted", "name", d.spec.Name, "mount_point", d.spec.MountPoint)
	return d.hooks.Run(ctx, hooks.AfterUnmount, &d.spec)
}

// EnsureOpenAndMounted opens and mounts the device.
func (d *Device) EnsureOpenAndMounted(ctx context.Context) error {
	if err := d.Open(ctx); err != nil {
		return err
	}
	return d.Mount(ctx)
}

// EnsureUnmountedAndClosed unmounts and closes the device.
func (d *Device) EnsureUnmountedAndClosed(ctx context.Context) error {
	if err := d.Unmount(ctx); err != nil {
		return err
	}
	return d.Close(ctx)
}

// Package hooks executes user-defined lifecycle hooks around device
// transitions. A hook name is looked up first in the global map, then in the
// device's own map; each match runs, in that order. A missing name is a no-op.
package hooks

import (
	"context"
	"log/slog"

	"github.com/lukskeep/lukskeep/internal/config"
	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/system"
)

// Lifecycle event names.
const (
	BeforeOpen    = "on_before_open"
	AfterOpen     = "on_after_open"
	BeforeClose   = "on_before_close"
	AfterClose    = "on_after_close"
	BeforeMount   = "on_before_mount"
	AfterMount    = "on_after_mount"
	BeforeUnmount = "on_before_unmount"
	AfterUnmount  = "on_after_unmount"

	BeforeMountAll   = "on_before_mount_all"
	AfterMountAll    = "on_after_mount_all"
	BeforeUnmountAll = "on_before_unmount_all"
	AfterUnmountAll  = "on_after_unmount_all"
)

// Runner executes lifecycle hooks through the process-execution capability.
type Runner struct {
	global map[string]config.Hook
	exec   system.Runner
}

// NewRunner creates a hook runner with the global hook map.
func NewRunner(global map[string]config.Hook, exec system.Runner) *Runner {
	return &Runner{global: global, exec: exec}
}

// Run fires the named hook for the given device scope. dev may be nil for
// collection-wide hooks. Both the global and the device hook run when both
// are defined, global first.
func (r *Runner) Run(ctx context.Context, name string, dev *config.Device) error {
	if hook, ok := r.global[name]; ok {
		slog.Info("hook_run", "hook", name, "scope", "global", "command", hook.Command)
		if err := r.runCommand(ctx, name, hook); err != nil {
			return err
		}
	}

	if dev != nil {
		if hook, ok := dev.Hooks[name]; ok {
			slog.Info("hook_run", "hook", name, "scope", "device", "device", dev.Name, "command", hook.Command)
			if err := r.runCommand(ctx, name, hook); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Runner) runCommand(ctx context.Context, name string, hook config.Hook) error {
	res, err := r.exec.RunShell(ctx, hook.Command)
	if err != nil {
		if hook.IgnoreErrors {
			slog.Warn("hook_failed_ignored", "hook", name, "command", hook.Command, "error", err)
			return nil
		}
		return errors.Wrap(err, "failed to run hook command")
	}

	if res.ExitCode != 0 {
		if hook.IgnoreErrors {
			slog.Warn("hook_failed_ignored", "hook", name, "command", hook.Command, "exit_code", res.ExitCode)
			return nil
		}
		slog.Error("hook_failed", "hook", name, "command", hook.Command, "exit_code", res.ExitCode,
			"stdout", res.Stdout, "stderr", res.Stderr)
		return &errors.HookError{
			Name:     name,
			Command:  hook.Command,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}

	return nil
}

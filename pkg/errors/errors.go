// Package errors provides error wrapping utilities and the typed failures
// reported by lukskeep operations.
package errors

import "fmt"

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// ConfigNotFoundError reports a missing or unreadable configuration file.
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("configuration file not found at %s", e.Path)
}

// DecryptionError reports a failure to decrypt a stored credential.
type DecryptionError struct {
	Name   string
	Detail string
}

func (e *DecryptionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("failed to decrypt credential for %q", e.Name)
	}
	return fmt.Sprintf("failed to decrypt credential for %q: %s", e.Name, e.Detail)
}

// EncryptionError reports a failure to encrypt or store a credential.
type EncryptionError struct {
	Name   string
	Detail string
}

func (e *EncryptionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("failed to encrypt credential for %q", e.Name)
	}
	return fmt.Sprintf("failed to encrypt credential for %q: %s", e.Name, e.Detail)
}

// DeviceConflictError reports a mapping name that was already in use and
// could not be recovered by the single close-and-retry attempt. Err carries
// the original open failure.
type DeviceConflictError struct {
	Name string
	Err  error
}

func (e *DeviceConflictError) Error() string {
	return fmt.Sprintf("mapping name %q already in use and recovery failed: %v", e.Name, e.Err)
}

func (e *DeviceConflictError) Unwrap() error { return e.Err }

// MountError reports a failed mount of an opened device.
type MountError struct {
	Name       string
	MountPoint string
	Output     string
}

func (e *MountError) Error() string {
	return fmt.Sprintf("failed to mount %q at %s: %s", e.Name, e.MountPoint, e.Output)
}

// UnmountError reports a failed unmount.
type UnmountError struct {
	MountPoint string
	Output     string
}

func (e *UnmountError) Error() string {
	return fmt.Sprintf("failed to unmount %s: %s", e.MountPoint, e.Output)
}

// HookError reports a lifecycle hook that exited non-zero with
// ignore_errors disabled.
type HookError struct {
	Name     string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %q command %q failed with exit code %d", e.Name, e.Command, e.ExitCode)
}

// SnapshotError reports a failed snapshot prune or create operation.
type SnapshotError struct {
	Op     string
	Path   string
	Detail string
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot %s failed for %s: %s", e.Op, e.Path, e.Detail)
}

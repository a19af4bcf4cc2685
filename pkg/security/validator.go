package security

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
)

// mappingNamePattern matches identifiers the device-mapper accepts as mapping
// names. Anything outside this set would also break the /dev/mapper path we
// derive from the name.
var mappingNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validator checks configuration values before any external tool sees them.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateMappingName checks that name is a valid device-mapper identifier.
func (v *Validator) ValidateMappingName(name string) error {
	if name == "" {
		slog.Error("security_mapping_name_invalid", "reason", "empty")
		return fmt.Errorf("security: mapping name cannot be empty")
	}
	if !mappingNamePattern.MatchString(name) {
		slog.Error("security_mapping_name_invalid", "name", name, "reason", "bad_characters")
		return fmt.Errorf("security: invalid mapping name: %s", name)
	}
	return nil
}

// ValidateDevnode checks that path is an absolute block-device path.
func (v *Validator) ValidateDevnode(path string) error {
	if !filepath.IsAbs(path) {
		slog.Error("security_devnode_invalid", "path", path, "reason", "not_absolute")
		return fmt.Errorf("security: devnode must be an absolute path: %s", path)
	}
	return nil
}

// ValidateMountPoint checks that path is absolute and does not escape upward.
// An empty path is allowed; it means the device is opened but never mounted.
func (v *Validator) ValidateMountPoint(path string) error {
	if path == "" {
		return nil
	}
	if !filepath.IsAbs(path) {
		slog.Error("security_mount_point_invalid", "path", path, "reason", "not_absolute")
		return fmt.Errorf("security: mount point must be an absolute path: %s", path)
	}
	clean := filepath.Clean(path)
	if clean == "/" {
		slog.Error("security_mount_point_invalid", "path", path, "reason", "root")
		return fmt.Errorf("security: refusing to use / as a mount point")
	}
	if strings.Contains(path, "..") {
		slog.Error("security_mount_point_invalid", "path", path, "reason", "path_traversal")
		return fmt.Errorf("security: path traversal detected: %s", path)
	}
	return nil
}

// ValidateSnapshotRoot checks the snapshot root directory path. Empty means
// snapshots are disabled.
func (v *Validator) ValidateSnapshotRoot(path string) error {
	if path == "" {
		return nil
	}
	if !filepath.IsAbs(path) {
		slog.Error("security_snapshot_root_invalid", "path", path, "reason", "not_absolute")
		return fmt.Errorf("security: snapshot root must be an absolute path: %s", path)
	}
	return nil
}

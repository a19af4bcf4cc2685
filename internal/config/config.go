// Package config loads the lukskeep configuration from a YAML file with
// environment-variable overlay. The loaded Config is immutable and is passed
// explicitly to every component that needs it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/security"
)

// Key-store backend names.
const (
	BackendFile = "file"
	BackendS3   = "s3"
	BackendAES  = "aes"
)

// Hook is a lifecycle hook: an opaque shell command bound to an event name.
// In YAML a hook is either a bare command string or an object with `command`
// and optional `ignore_errors`.
type Hook struct {
	Command      string `mapstructure:"command"`
	IgnoreErrors bool   `mapstructure:"ignore_errors"`
}

// Device describes one encrypted block device.
type Device struct {
	Name       string          `mapstructure:"name"`
	Devnode    string          `mapstructure:"devnode"`
	MountPoint string          `mapstructure:"mount_point"`
	Hooks      map[string]Hook `mapstructure:"hooks"`
}

// Config holds the full application configuration. Device order is
// significant: the first device is the mount/snapshot source, and teardown
// runs in reverse order.
type Config struct {
	Devices       []Device        `mapstructure:"devices"`
	Hooks         map[string]Hook `mapstructure:"hooks"`
	SnapshotRoot  string          `mapstructure:"snapshot_root"`
	RetentionDays int             `mapstructure:"retention_days"`
	KeyDir        string          `mapstructure:"key_dir"`
	GPGRecipient  string          `mapstructure:"gpg_recipient"`

	KeyBackend string `mapstructure:"key_backend"`
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Region   string `mapstructure:"s3_region"`
	S3Prefix   string `mapstructure:"s3_prefix"`

	JournalPath string `mapstructure:"journal_path"`
	FSMDBPath   string `mapstructure:"fsm_db_path"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "lukskeep", "config.yaml")
}

// Load reads the configuration from path, or from the default location when
// path is empty. A missing file is a ConfigNotFoundError.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err != nil {
		return nil, &errors.ConfigNotFoundError{Path: path}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("retention_days", 30)
	v.SetDefault("key_dir", defaultKeyDir())
	v.SetDefault("key_backend", BackendFile)
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("journal_path", defaultStatePath("journal.db"))
	v.SetDefault("fsm_db_path", defaultStatePath("fsm.db"))

	v.SetEnvPrefix("LUKSKEEP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to read config %s", path))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(hookDecodeHook))); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	cfg.KeyDir = expandHome(cfg.KeyDir)
	cfg.JournalPath = expandHome(cfg.JournalPath)
	cfg.FSMDBPath = expandHome(cfg.FSMDBPath)

	// "none" or empty means the device is opened but never mounted.
	for i := range cfg.Devices {
		if strings.EqualFold(cfg.Devices[i].MountPoint, "none") {
			cfg.Devices[i].MountPoint = ""
		}
	}

	return &cfg, nil
}

// hookDecodeHook lets a YAML hook entry be a bare command string instead of
// a {command, ignore_errors} object.
func hookDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(Hook{}) || from.Kind() != reflect.String {
		return data, nil
	}
	return Hook{Command: data.(string)}, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	val := security.NewValidator()

	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if err := val.ValidateMappingName(d.Name); err != nil {
			return err
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate device name: %s", d.Name)
		}
		seen[d.Name] = true

		if err := val.ValidateDevnode(d.Devnode); err != nil {
			return err
		}
		if err := val.ValidateMountPoint(d.MountPoint); err != nil {
			return err
		}
	}

	if err := val.ValidateSnapshotRoot(c.SnapshotRoot); err != nil {
		return err
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must be non-negative, got %d", c.RetentionDays)
	}

	switch c.KeyBackend {
	case BackendFile:
		if c.GPGRecipient == "" {
			return fmt.Errorf("gpg_recipient is required for the file key backend")
		}
	case BackendS3:
		if c.GPGRecipient == "" {
			return fmt.Errorf("gpg_recipient is required for the s3 key backend")
		}
		if c.S3Bucket == "" {
			return fmt.Errorf("s3_bucket is required for the s3 key backend")
		}
	case BackendAES:
		// Master passphrase is prompted at run time; nothing to validate here.
	default:
		return fmt.Errorf("unknown key_backend %q (want file, s3 or aes)", c.KeyBackend)
	}

	return nil
}

// FindDevice returns the device with the given mapping name, or nil.
func (c *Config) FindDevice(name string) *Device {
	for i := range c.Devices {
		if c.Devices[i].Name == name {
			return &c.Devices[i]
		}
	}
	return nil
}

func defaultKeyDir() string {
	return defaultStatePath("keys")
}

func defaultStatePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".lukskeep", name)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

package keystore

import (
	"context"
	"fmt"
	"log/slog"
)

// Manager handles creation, rotation and decryption of device passphrases on
// top of a Store backend.
type Manager struct {
	store  Store
	prompt Prompter
}

// NewManager creates a passphrase manager.
func NewManager(store Store, prompt Prompter) *Manager {
	return &Manager{store: store, prompt: prompt}
}

// Exists reports whether a credential is stored for name.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	return m.store.Exists(ctx, name)
}

// Get decrypts and returns the passphrase for name. The plaintext must not
// be logged or persisted by callers.
func (m *Manager) Get(ctx context.Context, name string) (string, error) {
	return m.store.Get(ctx, name)
}

// EnsureExists prompts for and stores a passphrase when none exists yet.
func (m *Manager) EnsureExists(ctx context.Context, name string) error {
	exists, err := m.store.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	pw, err := m.prompt.ReadSecret(fmt.Sprintf("Enter LUKS passphrase for %q: ", name))
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, name, pw); err != nil {
		return err
	}

	slog.Info("keystore_credential_created", "name", name)
	return nil
}

// Rotate overwrites the stored passphrase for name, asking for confirmation
// first when one already exists. It returns false when the user aborted.
func (m *Manager) Rotate(ctx context.Context, name string) (bool, error) {
	exists, err := m.store.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		ok, err := m.prompt.Confirm(fmt.Sprintf("Overwrite credential for %q? [y/N]: ", name))
		if err != nil {
			return false, err
		}
		if !ok {
			slog.Info("keystore_rotation_aborted", "name", name)
			return false, nil
		}
	}

	pw, err := m.prompt.ReadSecret(fmt.Sprintf("Enter new LUKS passphrase for %q: ", name))
	if err != nil {
		return false, err
	}
	if err := m.store.Set(ctx, name, pw); err != nil {
		return false, err
	}

	slog.Info("keystore_credential_rotated", "name", name)
	return true, nil
}

package keystore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/system"
)

// GPGStore keeps one GPG-encrypted file per device name under a local
// directory. The directory is created on first use.
type GPGStore struct {
	dir       string
	recipient string
	run       system.Runner
}

// NewGPGStore creates a GPG file store rooted at dir, encrypting to recipient.
func NewGPGStore(dir, recipient string, run system.Runner) (*GPGStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create key directory")
	}

	slog.Info("keystore_init", "backend", "file", "key_dir", dir, "recipient", recipient)
	return &GPGStore{dir: dir, recipient: recipient, run: run}, nil
}

func (s *GPGStore) path(name string) string {
	return filepath.Join(s.dir, objectName(name, ".gpg"))
}

func (s *GPGStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "failed to stat key file")
}

func (s *GPGStore) Get(ctx context.Context, name string) (string, error) {
	path := s.path(name)
	slog.Info("keystore_decrypt", "name", name, "path", path)

	res, err := s.run.Run(ctx, "gpg", "--quiet", "--batch", "--decrypt", path)
	if err != nil {
		return "", &errors.DecryptionError{Name: name, Detail: err.Error()}
	}
	if res.ExitCode != 0 {
		slog.Error("keystore_decrypt_failed", "name", name, "exit_code", res.ExitCode)
		return "", &errors.DecryptionError{Name: name, Detail: res.Stderr}
	}

	return trimTrailingNewline(res.Stdout), nil
}

func (s *GPGStore) Set(ctx context.Context, name, plaintext string) error {
	path := s.path(name)
	slog.Info("keystore_encrypt", "name", name, "path", path, "recipient", s.recipient)

	res, err := s.run.RunWithInput(ctx, plaintext,
		"gpg", "--batch", "--yes", "--encrypt", "--recipient", s.recipient, "--output", path)
	if err != nil {
		return &errors.EncryptionError{Name: name, Detail: err.Error()}
	}
	if res.ExitCode != 0 {
		slog.Error("keystore_encrypt_failed", "name", name, "exit_code", res.ExitCode)
		return &errors.EncryptionError{Name: name, Detail: res.Stderr}
	}

	return nil
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

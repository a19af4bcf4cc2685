package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/lukskeep/lukskeep/pkg/errors"
)

const (
	aesSaltSize  = 32
	aesKeySize   = 32 // AES-256
	aesNonceSize = 12 // GCM nonce
	aesIters     = 210000
)

// AESStore keeps credentials encrypted with AES-256-GCM under a key derived
// from a master passphrase. It needs no external gpg binary or recipient
// identity. Blob layout: salt || nonce || ciphertext.
type AESStore struct {
	dir    string
	prompt Prompter

	// master passphrase is prompted once per process and cached.
	master []byte
}

// NewAESStore creates an AES-GCM store rooted at dir.
func NewAESStore(dir string, prompt Prompter) (*AESStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create key directory")
	}

	slog.Info("keystore_init", "backend", "aes", "key_dir", dir)
	return &AESStore{dir: dir, prompt: prompt}, nil
}

func (s *AESStore) path(name string) string {
	return filepath.Join(s.dir, objectName(name, ".enc"))
}

func (s *AESStore) masterPassphrase() ([]byte, error) {
	if s.master != nil {
		return s.master, nil
	}
	pw, err := s.prompt.ReadSecret("Enter key-store master passphrase: ")
	if err != nil {
		return nil, err
	}
	s.master = []byte(pw)
	return s.master, nil
}

func (s *AESStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "failed to stat key file")
}

func (s *AESStore) Get(ctx context.Context, name string) (string, error) {
	blob, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", &errors.DecryptionError{Name: name, Detail: err.Error()}
	}
	if len(blob) < aesSaltSize+aesNonceSize {
		return "", &errors.DecryptionError{Name: name, Detail: "blob too short"}
	}

	master, err := s.masterPassphrase()
	if err != nil {
		return "", &errors.DecryptionError{Name: name, Detail: err.Error()}
	}

	salt := blob[:aesSaltSize]
	nonce := blob[aesSaltSize : aesSaltSize+aesNonceSize]
	ciphertext := blob[aesSaltSize+aesNonceSize:]

	gcm, err := newGCM(master, salt)
	if err != nil {
		return "", &errors.DecryptionError{Name: name, Detail: err.Error()}
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		slog.Error("keystore_decrypt_failed", "name", name, "reason", "authentication")
		return "", &errors.DecryptionError{Name: name, Detail: "authentication failed"}
	}

	return string(plaintext), nil
}

func (s *AESStore) Set(ctx context.Context, name, plaintext string) error {
	master, err := s.masterPassphrase()
	if err != nil {
		return &errors.EncryptionError{Name: name, Detail: err.Error()}
	}

	salt := make([]byte, aesSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return &errors.EncryptionError{Name: name, Detail: err.Error()}
	}
	nonce := make([]byte, aesNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return &errors.EncryptionError{Name: name, Detail: err.Error()}
	}

	gcm, err := newGCM(master, salt)
	if err != nil {
		return &errors.EncryptionError{Name: name, Detail: err.Error()}
	}

	blob := make([]byte, 0, aesSaltSize+aesNonceSize+len(plaintext)+16)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, gcm.Seal(nil, nonce, []byte(plaintext), nil)...)

	if err := os.WriteFile(s.path(name), blob, 0600); err != nil {
		return &errors.EncryptionError{Name: name, Detail: err.Error()}
	}

	slog.Info("keystore_encrypt", "name", name, "path", s.path(name))
	return nil
}

func newGCM(master, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(master, salt, aesIters, aesKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

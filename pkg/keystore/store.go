// Package keystore stores one encrypted passphrase per device name.
//
// Store is the capability interface; the concrete backend is selected by
// configuration: a GPG file store, an S3 object store holding the same GPG
// blobs, or a local AES-GCM store protected by a master passphrase.
package keystore

import "context"

// Store is the credential-store capability.
type Store interface {
	// Exists reports whether a credential is stored under name.
	Exists(ctx context.Context, name string) (bool, error)
	// Get decrypts and returns the plaintext credential for name.
	Get(ctx context.Context, name string) (string, error)
	// Set encrypts and stores plaintext under name, overwriting any existing
	// credential unconditionally. Confirmation policy is the caller's job.
	Set(ctx context.Context, name, plaintext string) error
}

// objectName returns the deterministic store object name for a device.
func objectName(name, ext string) string {
	return "luks-pass_" + name + ext
}

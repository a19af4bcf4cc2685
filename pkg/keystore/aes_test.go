package keystore

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/lukskeep/lukskeep/pkg/errors"
)

type fakePrompter struct {
	secret   string
	confirm  bool
	secrets  int
	confirms int
}

func (p *fakePrompter) ReadSecret(prompt string) (string, error) {
	p.secrets++
	return p.secret, nil
}

func (p *fakePrompter) Confirm(prompt string) (bool, error) {
	p.confirms++
	return p.confirm, nil
}

func TestAESStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := NewAESStore(dir, &fakePrompter{secret: "master-pw"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Set(context.Background(), "data", "hunter2"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// Fresh store with the same master passphrase decrypts the blob.
	store2, err := NewAESStore(dir, &fakePrompter{secret: "master-pw"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	pw, err := store2.Get(context.Background(), "data")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if pw != "hunter2" {
		t.Errorf("got %q, want %q", pw, "hunter2")
	}
}

func TestAESStore_MasterPromptedOnce(t *testing.T) {
	prompt := &fakePrompter{secret: "master-pw"}
	store, err := NewAESStore(t.TempDir(), prompt)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := store.Set(context.Background(), "a", "one"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set(context.Background(), "b", "two"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, err := store.Get(context.Background(), "a"); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if prompt.secrets != 1 {
		t.Errorf("expected master passphrase prompted once, got %d", prompt.secrets)
	}
}

func TestAESStore_WrongMasterFailsAuthentication(t *testing.T) {
	dir := t.TempDir()

	store, err := NewAESStore(dir, &fakePrompter{secret: "master-pw"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Set(context.Background(), "data", "hunter2"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	wrong, err := NewAESStore(dir, &fakePrompter{secret: "not-the-master"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	_, err = wrong.Get(context.Background(), "data")
	if err == nil {
		t.Fatal("expected an error")
	}
	var decErr *errors.DecryptionError
	if !stderrors.As(err, &decErr) {
		t.Fatalf("expected DecryptionError, got %T: %v", err, err)
	}
}

func TestAESStore_Exists(t *testing.T) {
	store, err := NewAESStore(t.TempDir(), &fakePrompter{secret: "master-pw"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	exists, err := store.Exists(context.Background(), "data")
	if err != nil || exists {
		t.Fatalf("expected no credential yet, got exists=%v err=%v", exists, err)
	}

	if err := store.Set(context.Background(), "data", "hunter2"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	exists, err = store.Exists(context.Background(), "data")
	if err != nil || !exists {
		t.Fatalf("expected credential to exist, got exists=%v err=%v", exists, err)
	}
}

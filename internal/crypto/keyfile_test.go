package crypto

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateMasterKeyFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	key, err := LoadOrCreateMasterKey(path, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(key) != masterKeySize {
		t.Fatalf("key size %d, want %d", len(key), masterKeySize)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("key file permissions %o, want 0600", fi.Mode().Perm())
	}

	again, err := LoadOrCreateMasterKey(path, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !bytes.Equal(key, again) {
		t.Fatal("reload returned a different key")
	}
}

func TestLoadOrCreateMasterKeyDerived(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	material := []byte("operator supplied passphrase")
	key, err := LoadOrCreateMasterKey(path, material)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The derived key itself must never land on disk.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if bytes.Contains(raw, key) {
		t.Fatal("derived key persisted to disk")
	}

	again, err := LoadOrCreateMasterKey(path, material)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !bytes.Equal(key, again) {
		t.Fatal("derivation is not stable across loads")
	}
}

func TestLoadMasterKeyRejectsOpenPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	if _, err := LoadOrCreateMasterKey(path, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := LoadOrCreateMasterKey(path, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for 0644 key file, got %v", err)
	}
}

func TestLoadMasterKeyRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadOrCreateMasterKey(path, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for corrupt key file, got %v", err)
	}
}

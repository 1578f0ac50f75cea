package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestGenerate(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if len(w.Address) != 40 {
		t.Errorf("address %q is not 20 hex-encoded bytes", w.Address)
	}
	if w.Address != DeriveAddress(w.PublicKey.Bytes()) {
		t.Error("address is not derived from the public key")
	}

	other, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if other.Address == w.Address {
		t.Error("two generated wallets share an address")
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "keystore.json")
	log := zerolog.Nop()

	created, err := LoadOrCreate(path, "hunter2", log)
	if err != nil {
		t.Fatalf("LoadOrCreate() failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("keystore not written: %v", err)
	}
	if !strings.Contains(string(raw), created.Address) {
		t.Error("keystore does not record the address")
	}

	loaded, err := LoadOrCreate(path, "hunter2", log)
	if err != nil {
		t.Fatalf("LoadOrCreate() on existing keystore failed: %v", err)
	}
	if loaded.Address != created.Address {
		t.Errorf("reloaded address %s, want %s", loaded.Address, created.Address)
	}
}

func TestSignAfterReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if err := w.Save(path, "pw"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	loaded, err := Load(path, "pw")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	msg := []byte("block 1")
	sig := loaded.Sign(msg)
	if !Verify(w.PublicKey, msg, sig) {
		t.Error("signature from the reloaded key does not verify")
	}
	if Verify(w.PublicKey, []byte("block 2"), sig) {
		t.Error("signature verified for a different message")
	}
}

func TestLoadWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if err := w.Save(path, "right"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if _, err := Load(path, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Load() error = %v, want %v", err, ErrWrongPassword)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.json"), "")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

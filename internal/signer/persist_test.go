package signer

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSaveLoadKeyring_RoundTrip(t *testing.T) {
	kr, err := NewKeyring()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := kr.Rotate(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "keys.json")
	if err := kr.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadKeyring(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.CurrentKeyID() != kr.CurrentKeyID() {
		t.Fatalf("CurrentKeyID = %d, want %d", loaded.CurrentKeyID(), kr.CurrentKeyID())
	}

	header := []byte("h")
	root, sig, err := kr.Seal(context.Background(), kr.CurrentKeyID(), header, [][32]byte{{1}})
	if err != nil {
		t.Fatal(err)
	}
	if err := loaded.VerifySeal(kr.CurrentKeyID(), header, root, sig); err != nil {
		t.Fatalf("loaded keyring failed to verify original's signature: %v", err)
	}
}

func TestLoadOrNewKeyring_CreatesThenReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")

	kr1, err := LoadOrNewKeyring(path)
	if err != nil {
		t.Fatal(err)
	}
	kr2, err := LoadOrNewKeyring(path)
	if err != nil {
		t.Fatal(err)
	}
	if kr1.CurrentKeyID() != kr2.CurrentKeyID() {
		t.Fatalf("expected second load to reuse the same key id")
	}
}

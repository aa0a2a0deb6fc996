package signer

import (
	"context"
	"testing"
)

func TestKeyring_SealAndVerify(t *testing.T) {
	kr, err := NewKeyring()
	if err != nil {
		t.Fatal(err)
	}
	keyID := kr.CurrentKeyID()
	header := []byte("fake-header-bytes")
	digests := [][32]byte{{1}, {2}, {3}}

	root, sig, err := kr.Seal(context.Background(), keyID, header, digests)
	if err != nil {
		t.Fatal(err)
	}
	if err := kr.VerifySeal(keyID, header, root, sig); err != nil {
		t.Fatalf("VerifySeal: %v", err)
	}
}

func TestKeyring_VerifySealRejectsTamperedRoot(t *testing.T) {
	kr, _ := NewKeyring()
	keyID := kr.CurrentKeyID()
	header := []byte("h")
	root, sig, err := kr.Seal(context.Background(), keyID, header, [][32]byte{{1}})
	if err != nil {
		t.Fatal(err)
	}
	root[0] ^= 0xff
	if err := kr.VerifySeal(keyID, header, root, sig); err == nil {
		t.Fatal("expected verification failure against tampered root")
	}
}

func TestKeyring_RotateKeepsOldKeyVerifiable(t *testing.T) {
	kr, _ := NewKeyring()
	oldID := kr.CurrentKeyID()
	header := []byte("h")
	root, sig, err := kr.Seal(context.Background(), oldID, header, [][32]byte{{7}})
	if err != nil {
		t.Fatal(err)
	}

	newID, err := kr.Rotate()
	if err != nil {
		t.Fatal(err)
	}
	if newID == oldID {
		t.Fatal("rotate should produce a new key id")
	}
	if kr.CurrentKeyID() != newID {
		t.Fatal("rotate should activate the new key")
	}
	if err := kr.VerifySeal(oldID, header, root, sig); err != nil {
		t.Fatalf("old key should remain verifiable after rotation: %v", err)
	}
}

func TestKeyring_AttestHeadRoundTrip(t *testing.T) {
	kr, _ := NewKeyring()
	att, err := kr.AttestHead(42, [32]byte{9})
	if err != nil {
		t.Fatal(err)
	}
	if err := kr.VerifyHeadAttestation(att); err != nil {
		t.Fatalf("VerifyHeadAttestation: %v", err)
	}
}

func TestKeyring_VerifySealUnknownKeyErrors(t *testing.T) {
	kr, _ := NewKeyring()
	if err := kr.VerifySeal(9999, []byte("h"), [32]byte{}, []byte("sig")); err == nil {
		t.Fatal("expected error for unknown key id")
	}
}

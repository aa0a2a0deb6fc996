// Package signer holds the active ed25519 signing key and a versioned
// keyring of past public keys (spec.md §4.F). It implements
// internal/chain.Anchorer by composing internal/merkle's tree build
// with a signature over the segment header and Merkle root, grounded
// on slowdrip-network-slowdrip-miner/internal/receipts/signer.go's
// domain-separated digest-then-sign idiom.
package signer

import (
	"context"
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
	"github.com/wolfe-services/tachikoma-audit/internal/merkle"
)

// DomainTag separates this pipeline's segment-seal signatures from any
// other protocol that might reuse the same key material.
const DomainTag = "tachikoma-audit:segment-seal:v1"

// HeadAttestationTag separates live head attestation signatures from
// segment-seal signatures so a verifier can never confuse the two.
const HeadAttestationTag = "tachikoma-audit:head-attestation:v1"

// Key is one versioned keypair. Private-key material never leaves this
// package (spec.md §4.F: "Private-key material is never logged or
// exported; only public keys and signatures cross component
// boundaries").
type Key struct {
	ID        uint32
	Public    ed25519.PublicKey
	private   ed25519.PrivateKey
	CreatedAt time.Time
}

// Keyring holds one active signing key plus however many retired keys
// are still needed to verify old segments.
type Keyring struct {
	mu       sync.RWMutex
	keys     map[uint32]*Key
	activeID uint32
	nextID   uint32
}

// NewKeyring generates a fresh keyring with a single active key.
func NewKeyring() (*Keyring, error) {
	kr := &Keyring{keys: make(map[uint32]*Key)}
	if _, err := kr.generate(); err != nil {
		return nil, err
	}
	return kr, nil
}

func (kr *Keyring) generate() (*Key, error) {
	pub, priv, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %v", auditerr.ErrSignatureFailed, err)
	}
	kr.nextID++
	k := &Key{ID: kr.nextID, Public: pub, private: priv, CreatedAt: time.Now().UTC()}
	kr.keys[k.ID] = k
	kr.activeID = k.ID
	return k, nil
}

// Rotate activates a new key, to be called at a segment boundary
// (spec.md §4.F: "a new key becomes active at a segment boundary").
// Old keys remain in the ring for verification.
func (kr *Keyring) Rotate() (uint32, error) {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	k, err := kr.generate()
	if err != nil {
		return 0, err
	}
	return k.ID, nil
}

// CurrentKeyID returns the id of the currently active key.
func (kr *Keyring) CurrentKeyID() uint32 {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.activeID
}

// PublicKey returns the public key registered under id, if any.
func (kr *Keyring) PublicKey(id uint32) (ed25519.PublicKey, bool) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	k, ok := kr.keys[id]
	if !ok {
		return nil, false
	}
	return k.Public, true
}

func (kr *Keyring) active() (*Key, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	k, ok := kr.keys[kr.activeID]
	if !ok {
		return nil, fmt.Errorf("%w: no active key", auditerr.ErrUnknownKey)
	}
	return k, nil
}

func (kr *Keyring) byID(id uint32) (*Key, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	k, ok := kr.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: key id %d", auditerr.ErrUnknownKey, id)
	}
	return k, nil
}

// sealDigest is the exact byte sequence signed for a segment seal:
// DomainTag || headerBytes || merkleRoot (spec.md §4.F: "Signs
// {segment_header_bytes ‖ merkle_root}").
func sealDigest(headerBytes []byte, root [32]byte) []byte {
	buf := make([]byte, 0, len(DomainTag)+len(headerBytes)+32)
	buf = append(buf, DomainTag...)
	buf = append(buf, headerBytes...)
	buf = append(buf, root[:]...)
	return buf
}

// Seal builds the Merkle tree over linkDigests and signs the segment
// header bytes together with the resulting root under keyID,
// implementing internal/chain.Anchorer.
func (kr *Keyring) Seal(_ context.Context, keyID uint32, headerBytes []byte, linkDigests [][32]byte) ([32]byte, []byte, error) {
	if len(linkDigests) == 0 {
		return [32]byte{}, nil, fmt.Errorf("%w: cannot seal a segment with no links", auditerr.ErrSignatureFailed)
	}
	root := merkle.RootOf(linkDigests)

	k, err := kr.byID(keyID)
	if err != nil {
		return [32]byte{}, nil, err
	}
	sig := ed25519.Sign(k.private, sealDigest(headerBytes, root))
	return root, sig, nil
}

// VerifySeal checks a segment's stored signature against its
// recomputed Merkle root (spec.md §4.G.2).
func (kr *Keyring) VerifySeal(keyID uint32, headerBytes []byte, root [32]byte, sig []byte) error {
	pub, ok := kr.PublicKey(keyID)
	if !ok {
		return fmt.Errorf("%w: key id %d", auditerr.ErrUnknownKey, keyID)
	}
	if !ed25519.Verify(pub, sealDigest(headerBytes, root), sig) {
		return fmt.Errorf("%w: segment signature invalid", auditerr.ErrVerificationFailed)
	}
	return nil
}

// HeadAttestation is a live, periodically-signed proof that the chain
// tip is n/prevDigest at ts, so a verifier can detect silent
// truncation between attestations (spec.md §4.F).
type HeadAttestation struct {
	KeyID      uint32
	Timestamp  int64 // UnixNano
	N          uint64
	PrevDigest [32]byte
	Signature  []byte
}

func attestationDigest(ts int64, n uint64, prevDigest [32]byte) []byte {
	buf := make([]byte, 0, len(HeadAttestationTag)+8+8+32)
	buf = append(buf, HeadAttestationTag...)
	buf = appendI64(buf, ts)
	buf = appendU64(buf, n)
	buf = append(buf, prevDigest[:]...)
	return buf
}

// AttestHead signs {timestamp ‖ n ‖ prev_digest} under the active key
// (spec.md §4.F: "on a heartbeat, signs {timestamp ‖ n ‖ prev_digest}
// as a live head attestation").
func (kr *Keyring) AttestHead(n uint64, prevDigest [32]byte) (HeadAttestation, error) {
	k, err := kr.active()
	if err != nil {
		return HeadAttestation{}, err
	}
	ts := time.Now().UTC().UnixNano()
	sig := ed25519.Sign(k.private, attestationDigest(ts, n, prevDigest))
	return HeadAttestation{KeyID: k.ID, Timestamp: ts, N: n, PrevDigest: prevDigest, Signature: sig}, nil
}

// VerifyHeadAttestation checks a.Signature against its claimed fields.
func (kr *Keyring) VerifyHeadAttestation(a HeadAttestation) error {
	pub, ok := kr.PublicKey(a.KeyID)
	if !ok {
		return fmt.Errorf("%w: key id %d", auditerr.ErrUnknownKey, a.KeyID)
	}
	if !ed25519.Verify(pub, attestationDigest(a.Timestamp, a.N, a.PrevDigest), a.Signature) {
		return fmt.Errorf("%w: head attestation signature invalid", auditerr.ErrVerificationFailed)
	}
	return nil
}

func appendU64(b []byte, v uint64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendI64(b []byte, v int64) []byte {
	return appendU64(b, uint64(v))
}

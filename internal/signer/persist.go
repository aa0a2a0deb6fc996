package signer

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// storedKey is the on-disk representation of one Key. Private key
// bytes are written deliberately — key_store_path is this service's
// own durable key material, not a value crossing a component boundary
// (spec.md §4.F's "never logged or exported" binds logs and exported
// audit data, not the keyring's own persistence file).
type storedKey struct {
	ID        uint32    `json:"id"`
	Public    []byte    `json:"public"`
	Private   []byte    `json:"private"`
	CreatedAt time.Time `json:"created_at"`
}

type storedKeyring struct {
	Keys     []storedKey `json:"keys"`
	ActiveID uint32      `json:"active_id"`
	NextID   uint32      `json:"next_id"`
}

// Save persists kr to path atomically (temp file + rename), the same
// idiom internal/archive/store.LocalBackend and cmd/rigd's addr file
// use for crash-safe writes.
func (kr *Keyring) Save(path string) error {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	s := storedKeyring{ActiveID: kr.activeID, NextID: kr.nextID}
	for _, k := range kr.keys {
		s.Keys = append(s.Keys, storedKey{
			ID:        k.ID,
			Public:    []byte(k.Public),
			Private:   []byte(k.private),
			CreatedAt: k.CreatedAt,
		})
	}

	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("signer: marshal keyring: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("signer: mkdir key store dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("signer: write key store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("signer: promote key store: %w", err)
	}
	return nil
}

// LoadKeyring reads a keyring previously written by Save.
func LoadKeyring(path string) (*Keyring, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signer: read key store: %w", err)
	}
	var s storedKeyring
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("signer: decode key store: %w", err)
	}

	kr := &Keyring{keys: make(map[uint32]*Key, len(s.Keys)), activeID: s.ActiveID, nextID: s.NextID}
	for _, sk := range s.Keys {
		kr.keys[sk.ID] = &Key{
			ID:        sk.ID,
			Public:    ed25519.PublicKey(sk.Public),
			private:   ed25519.PrivateKey(sk.Private),
			CreatedAt: sk.CreatedAt,
		}
	}
	return kr, nil
}

// LoadOrNewKeyring loads path if it exists, or generates a fresh
// keyring and immediately persists it to path.
func LoadOrNewKeyring(path string) (*Keyring, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadKeyring(path)
	}
	kr, err := NewKeyring()
	if err != nil {
		return nil, err
	}
	if err := kr.Save(path); err != nil {
		return nil, err
	}
	return kr, nil
}

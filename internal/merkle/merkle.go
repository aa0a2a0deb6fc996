// Package merkle builds the per-segment Merkle tree over link digests
// and produces/verifies inclusion proofs (spec.md §4.E). Hashing uses
// the same domain-separated leaf/internal convention as
// slowdrip-network-slowdrip-miner/internal/receipts/signer.go, adapted
// to the 0x00/0x01 prefix bytes this pipeline's wire format specifies.
package merkle

import (
	"crypto/sha256"
	"fmt"
)

const (
	leafPrefix     = 0x00
	internalPrefix = 0x01
)

// Tree is a fully-materialized Merkle tree over a segment's ordered
// link digests, levels[0] being the leaves and the last level holding
// the single root.
type Tree struct {
	levels [][][32]byte
}

// Build constructs a tree over linkDigests in order (spec.md §4.E:
// "Leaves = link_digest(n) for n in [n_lo, n_hi]"). It panics on an
// empty slice — sealing a segment with no links is a caller bug
// (sequencer.go's sealCurrentLocked never calls Build in that case).
func Build(linkDigests [][32]byte) *Tree {
	if len(linkDigests) == 0 {
		panic("merkle: Build called with no link digests")
	}

	leaves := make([][32]byte, len(linkDigests))
	for i, d := range linkDigests {
		leaves[i] = leafHash(d)
	}
	return buildFromLeaves(leaves)
}

func buildFromLeaves(leaves [][32]byte) *Tree {
	levels := [][][32]byte{leaves}
	cur := leaves
	for len(cur) > 1 {
		next := make([][32]byte, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 < len(cur) {
				next = append(next, internalHash(cur[i], cur[i+1]))
			} else {
				// odd-count levels duplicate the trailing node
				next = append(next, internalHash(cur[i], cur[i]))
			}
		}
		levels = append(levels, next)
		cur = next
	}
	return &Tree{levels: levels}
}

// Root returns the tree's root hash.
func (t *Tree) Root() [32]byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Proof is an inclusion proof for one leaf: the sibling hashes along
// the path from leaf to root, each tagged with which side it sits on.
type Proof struct {
	LeafIndex int
	Siblings  []ProofStep
}

// ProofStep is one sibling hash and whether it is the left or right
// operand when recombining with the running hash.
type ProofStep struct {
	Hash    [32]byte
	IsRight bool // true if Hash is the right operand
}

// ProofFor returns the inclusion proof for the leaf at index i
// (spec.md §4.E: "sibling hashes along the path from the leaf to the
// root").
func (t *Tree) ProofFor(i int) (Proof, error) {
	if i < 0 || i >= len(t.levels[0]) {
		return Proof{}, fmt.Errorf("merkle: leaf index %d out of range", i)
	}
	p := Proof{LeafIndex: i}
	idx := i
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		var siblingIdx int
		var isRight bool
		if idx%2 == 0 {
			if idx+1 < len(nodes) {
				siblingIdx = idx + 1
			} else {
				siblingIdx = idx // duplicated trailing node
			}
			isRight = true
		} else {
			siblingIdx = idx - 1
			isRight = false
		}
		p.Siblings = append(p.Siblings, ProofStep{Hash: nodes[siblingIdx], IsRight: isRight})
		idx /= 2
	}
	return p, nil
}

// VerifyProof recomputes the root from linkDigest and proof and
// reports whether it equals root.
func VerifyProof(linkDigest [32]byte, proof Proof, root [32]byte) bool {
	cur := leafHash(linkDigest)
	for _, step := range proof.Siblings {
		if step.IsRight {
			cur = internalHash(cur, step.Hash)
		} else {
			cur = internalHash(step.Hash, cur)
		}
	}
	return cur == root
}

// RootOf recomputes a segment's Merkle root directly from its ordered
// link digests, without retaining the tree — used by the integrity
// monitor (spec.md §4.G.2) which only needs the root, not proofs.
func RootOf(linkDigests [][32]byte) [32]byte {
	return Build(linkDigests).Root()
}

func leafHash(linkDigest [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(linkDigest[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func internalHash(left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{internalPrefix})
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

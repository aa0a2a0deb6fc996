package merkle

import (
	"crypto/sha256"
	"testing"
)

func digest(b byte) [32]byte {
	return sha256.Sum256([]byte{b})
}

func TestBuild_SingleLeafRootIsLeafHash(t *testing.T) {
	d := digest(1)
	tree := Build([][32]byte{d})
	if tree.Root() != leafHash(d) {
		t.Fatalf("single-leaf tree root should equal the leaf hash")
	}
}

func TestBuild_OddCountDuplicatesTrailingNode(t *testing.T) {
	digests := [][32]byte{digest(1), digest(2), digest(3)}
	tree := Build(digests)

	want := internalHash(internalHash(leafHash(digests[0]), leafHash(digests[1])), internalHash(leafHash(digests[2]), leafHash(digests[2])))
	if tree.Root() != want {
		t.Fatalf("odd-count root mismatch")
	}
}

func TestProofFor_VerifiesForEveryLeaf(t *testing.T) {
	digests := [][32]byte{digest(1), digest(2), digest(3), digest(4), digest(5)}
	tree := Build(digests)
	root := tree.Root()

	for i, d := range digests {
		proof, err := tree.ProofFor(i)
		if err != nil {
			t.Fatalf("ProofFor(%d): %v", i, err)
		}
		if !VerifyProof(d, proof, root) {
			t.Fatalf("proof for leaf %d did not verify", i)
		}
	}
}

func TestVerifyProof_RejectsWrongLeaf(t *testing.T) {
	digests := [][32]byte{digest(1), digest(2), digest(3), digest(4)}
	tree := Build(digests)
	proof, err := tree.ProofFor(0)
	if err != nil {
		t.Fatal(err)
	}
	if VerifyProof(digest(99), proof, tree.Root()) {
		t.Fatal("proof should not verify against a different leaf")
	}
}

func TestRootOf_MatchesBuiltTreeRoot(t *testing.T) {
	digests := [][32]byte{digest(1), digest(2), digest(3)}
	if RootOf(digests) != Build(digests).Root() {
		t.Fatal("RootOf and Build(...).Root() diverged")
	}
}

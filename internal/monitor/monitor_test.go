package monitor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/chain"
	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

type fakeSegmentSource struct {
	segments []SealedSegment
}

func (f *fakeSegmentSource) ListSealed(ctx context.Context) ([]SealedSegment, error) {
	return f.segments, nil
}

type fakeHeadSource struct {
	n          uint64
	prevDigest [32]byte
}

func (f *fakeHeadSource) CurrentHead() (uint64, [32]byte) { return f.n, f.prevDigest }
func (f *fakeHeadSource) LastAttestation() (signer.HeadAttestation, time.Time, bool) {
	return signer.HeadAttestation{}, time.Time{}, false
}

type recordingRecorder struct {
	events []audit.Event
}

func (r *recordingRecorder) Record(ctx context.Context, e audit.Event) (audit.Result, error) {
	r.events = append(r.events, e)
	return audit.Result{Accepted: true}, nil
}

func buildValidSegment(t *testing.T, kr *signer.Keyring, nLo uint64, count int, genesisPrev [32]byte) SealedSegment {
	t.Helper()
	header := chain.Header{Version: chain.SegmentFormatVersion, KeyID: kr.CurrentKeyID(), NLo: nLo}

	prev := genesisPrev
	links := make([]chain.Link, count)
	digests := make([][32]byte, count)
	for i := 0; i < count; i++ {
		n := nLo + uint64(i)
		eventHash := [32]byte{byte(n)}
		linkDigest := chain.LinkDigest(n, eventHash, prev)
		links[i] = chain.Link{N: n, EventHash: eventHash, PrevDigest: prev, LinkDigest: linkDigest}
		digests[i] = linkDigest
		prev = linkDigest
	}

	root, sig, err := kr.Seal(context.Background(), header.KeyID, chain.EncodeHeaderForVerification(header), digests)
	if err != nil {
		t.Fatal(err)
	}
	return SealedSegment{Path: "segment-1", Header: header, Links: links, MerkleRoot: root, Signature: sig}
}

func TestMonitor_Pass_CleanChainProducesNoIssues(t *testing.T) {
	kr, err := signer.NewKeyring()
	if err != nil {
		t.Fatal(err)
	}
	seg := buildValidSegment(t, kr, 1, 4, [32]byte{})
	rec := &recordingRecorder{}
	m := New(Config{Interval: time.Second}, &fakeSegmentSource{segments: []SealedSegment{seg}}, &fakeHeadSource{}, kr, rec, nil, zerolog.New(io.Discard))

	if err := m.Pass(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no issues on a clean chain, got %d", len(rec.events))
	}
	if m.Suspect() {
		t.Fatal("clean chain should not be marked suspect")
	}
}

func TestMonitor_Pass_RootMismatchDetected(t *testing.T) {
	kr, _ := signer.NewKeyring()
	seg := buildValidSegment(t, kr, 1, 3, [32]byte{})
	seg.MerkleRoot[0] ^= 0xff // tamper with the stored root

	rec := &recordingRecorder{}
	m := New(Config{Interval: time.Second}, &fakeSegmentSource{segments: []SealedSegment{seg}}, &fakeHeadSource{}, kr, rec, nil, zerolog.New(io.Discard))

	if err := m.Pass(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) == 0 {
		t.Fatal("expected at least one issue for a tampered root")
	}
	if !m.Suspect() {
		t.Fatal("a root mismatch is critical and should mark the chain suspect")
	}
}

func TestMonitor_Pass_BoundaryMismatchAcrossSegments(t *testing.T) {
	kr, _ := signer.NewKeyring()
	seg1 := buildValidSegment(t, kr, 1, 2, [32]byte{})
	// seg2 should chain from seg1's tail, but start from a wrong prev.
	seg2 := buildValidSegment(t, kr, 3, 2, [32]byte{0xde, 0xad})

	rec := &recordingRecorder{}
	m := New(Config{Interval: time.Second}, &fakeSegmentSource{segments: []SealedSegment{seg1, seg2}}, &fakeHeadSource{}, kr, rec, nil, zerolog.New(io.Discard))

	if err := m.Pass(context.Background()); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range rec.events {
		if e.Attributes["kind"] == string(IssueBoundaryMismatch) {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a boundary_mismatch issue")
	}
}

func TestMonitor_Pass_DigestMismatchDetected(t *testing.T) {
	kr, _ := signer.NewKeyring()
	seg := buildValidSegment(t, kr, 1, 2, [32]byte{})
	seg.Links[0].LinkDigest[0] ^= 0xff // corrupt a stored link digest

	rec := &recordingRecorder{}
	m := New(Config{Interval: time.Second}, &fakeSegmentSource{segments: []SealedSegment{seg}}, &fakeHeadSource{}, kr, rec, nil, zerolog.New(io.Discard))

	if err := m.Pass(context.Background()); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range rec.events {
		if e.Attributes["kind"] == string(IssueDigestMismatch) {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a digest_mismatch issue")
	}
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/chain"
	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

func buildChain(t *testing.T, dir string, n int) {
	t.Helper()
	kr, err := signer.NewKeyring()
	if err != nil {
		t.Fatal(err)
	}
	cfg := chain.Config{
		Dir:              dir,
		HeadPath:         filepath.Join(dir, "head"),
		SegmentMaxEvents: 2,
	}
	seq, err := chain.Open(context.Background(), cfg, kr, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		e, err := audit.NewEvent(audit.Authentication, audit.Login).
			Actor(audit.UserActor("u")).
			Build()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := seq.Append(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
	if err := seq.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestReader_ListSealed(t *testing.T) {
	dir := t.TempDir()
	buildChain(t, dir, 3)

	r := NewReader(dir)
	segs, err := r.ListSealed(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) == 0 {
		t.Fatal("expected at least one sealed segment")
	}
	for _, seg := range segs {
		if len(seg.Signature) == 0 {
			t.Fatalf("segment %s missing signature", seg.Path)
		}
		if len(seg.Links) == 0 {
			t.Fatalf("segment %s has no links", seg.Path)
		}
	}
}

func TestCursor_StreamsInOrder(t *testing.T) {
	dir := t.TempDir()
	buildChain(t, dir, 3)

	c := NewCursor(dir, 0)
	var ns []uint64
	for {
		item, ok, err := c.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		ns = append(ns, item.N)
		if item.Event.Actor.UserID != "u" {
			t.Fatalf("decoded event lost actor: %+v", item.Event)
		}
	}
	if len(ns) != 3 {
		t.Fatalf("expected 3 items, got %v", ns)
	}
	for i, n := range ns {
		if n != uint64(i+1) {
			t.Fatalf("out of order: %v", ns)
		}
	}
}

func TestCursor_RespectsFromN(t *testing.T) {
	dir := t.TempDir()
	buildChain(t, dir, 3)

	c := NewCursor(dir, 2)
	var ns []uint64
	for {
		item, ok, err := c.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		ns = append(ns, item.N)
	}
	if len(ns) != 2 || ns[0] != 2 || ns[1] != 3 {
		t.Fatalf("expected [2 3] from fromN=2, got %v", ns)
	}
}

package retrieve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/archive"
	archstore "github.com/wolfe-services/tachikoma-audit/internal/archive/store"
	"github.com/wolfe-services/tachikoma-audit/internal/chain"
	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

func buildArchive(t *testing.T, n int) (*signer.Keyring, archive.Metadata, archstore.Location, *archstore.LocalBackend) {
	t.Helper()
	chainDir := t.TempDir()
	kr, err := signer.NewKeyring()
	if err != nil {
		t.Fatal(err)
	}
	cfg := chain.Config{Dir: chainDir, HeadPath: filepath.Join(chainDir, "head"), SegmentMaxEvents: 2}
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

	paths, err := chain.ListSegmentPaths(chainDir)
	if err != nil {
		t.Fatal(err)
	}
	var recs []chain.SegmentRecord
	for _, p := range paths {
		rec, err := chain.ReadSegmentFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Sealed {
			recs = append(recs, rec)
		}
	}

	backend := archstore.NewLocalBackend()
	loc := archstore.Location{Kind: archstore.Local, Path: filepath.Join(t.TempDir(), "arch.tkarch")}
	meta, err := archive.Create(context.Background(), archive.CreateRequest{
		ID:        "arch-1",
		Segments:  recs,
		WithIndex: true,
	}, backend, loc)
	if err != nil {
		t.Fatal(err)
	}
	return kr, meta, loc, backend
}

func TestRetriever_Query(t *testing.T) {
	kr, meta, loc, backend := buildArchive(t, 4)

	catalogPath := filepath.Join(t.TempDir(), "catalog.json")
	catalog, err := OpenCatalog(catalogPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := catalog.Put(meta); err != nil {
		t.Fatal(err)
	}

	r := New(catalog, backend, kr, func(id string) archstore.Location { return loc })

	events, err := r.Query(context.Background(), Filter{
		Start: meta.PeriodStart,
		End:   meta.PeriodEnd,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
}

func TestRetriever_QueryByCategoryExcludesNonMatching(t *testing.T) {
	kr, meta, loc, backend := buildArchive(t, 2)

	catalog, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := catalog.Put(meta); err != nil {
		t.Fatal(err)
	}

	r := New(catalog, backend, kr, func(id string) archstore.Location { return loc })

	events, err := r.Query(context.Background(), Filter{
		Start:    meta.PeriodStart,
		End:      meta.PeriodEnd,
		Category: "nonexistent",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
}

func TestCatalog_PersistsAcrossReopen(t *testing.T) {
	_, meta, _, _ := buildArchive(t, 1)
	path := filepath.Join(t.TempDir(), "catalog.json")

	c1, err := OpenCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c1.Put(meta); err != nil {
		t.Fatal(err)
	}

	c2, err := OpenCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := c2.Get(meta.ID)
	if !ok {
		t.Fatal("expected catalog entry to survive reopen")
	}
	if got.EventCount != meta.EventCount {
		t.Fatalf("EventCount = %d, want %d", got.EventCount, meta.EventCount)
	}
}

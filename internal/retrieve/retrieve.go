package retrieve

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/archive"
	archstore "github.com/wolfe-services/tachikoma-audit/internal/archive/store"
	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

// Filter selects events across the archive catalog by event-time range
// and, optionally, category (spec.md §4.J: "time range or category
// filter").
type Filter struct {
	Start    time.Time
	End      time.Time
	Category string // empty matches every category
}

// Retriever resolves a Filter against the catalog and fetches only the
// matching event bytes from cold storage, re-verifying every result
// against its archive's embedded Merkle root before returning it.
type Retriever struct {
	catalog *Catalog
	backend archstore.Backend
	keyring *signer.Keyring
	locate  func(archiveID string) archstore.Location
}

// New builds a Retriever. locate maps an archive id to the storage
// location it was uploaded to (the catalog only tracks metadata, not
// locations, since a deployment may move archives between backends).
func New(catalog *Catalog, backend archstore.Backend, keyring *signer.Keyring, locate func(archiveID string) archstore.Location) *Retriever {
	return &Retriever{catalog: catalog, backend: backend, keyring: keyring, locate: locate}
}

// Query returns every event matching f, re-verified against each
// archive's embedded Merkle root (spec.md §4.J).
func (r *Retriever) Query(ctx context.Context, f Filter) ([]audit.Event, error) {
	candidates := r.catalog.Candidates(f.Start, f.End)

	var out []audit.Event
	for _, meta := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		events, err := r.queryArchive(ctx, meta, f)
		if err != nil {
			return nil, fmt.Errorf("retrieve: archive %s: %w", meta.ID, err)
		}
		out = append(out, events...)
	}
	return out, nil
}

func (r *Retriever) queryArchive(ctx context.Context, meta archive.Metadata, f Filter) ([]audit.Event, error) {
	loc := r.locate(meta.ID)

	opened, err := archive.Open(ctx, r.backend, loc)
	if err != nil {
		return nil, err
	}
	if err := opened.Verify(r.keyring); err != nil {
		return nil, fmt.Errorf("archive failed verification: %w", err)
	}

	entries := opened.Index.SearchByTime(f.Start, f.End)
	if f.Category != "" {
		entries = filterByCategory(entries, f.Category)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	return opened.ReadEvents(entries)
}

func filterByCategory(entries []archive.IndexEntry, category string) []archive.IndexEntry {
	var out []archive.IndexEntry
	for _, e := range entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

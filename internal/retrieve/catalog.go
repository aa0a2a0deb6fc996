// Package retrieve implements the archive retriever (spec.md §4.J):
// given a time range or category filter, it consults a small on-disk
// catalog to select candidate archives, then uses each archive's
// embedded index to fetch only the required event bytes.
package retrieve

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wolfe-services/tachikoma-audit/internal/archive"
)

// Catalog is the small on-disk map of archive_id → metadata the
// retriever consults before touching any archive object itself
// (spec.md §4.J: "consults the archive catalog... to select candidate
// archives").
type Catalog struct {
	mu   sync.RWMutex
	path string
	byID map[string]archive.Metadata
}

// OpenCatalog loads path if it exists, or starts an empty catalog that
// will be created at path on the first Put.
func OpenCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: path, byID: make(map[string]archive.Metadata)}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve: read catalog: %w", err)
	}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c.byID); err != nil {
		return nil, fmt.Errorf("retrieve: decode catalog: %w", err)
	}
	return c, nil
}

// Put records meta in the catalog and persists it to disk.
func (c *Catalog) Put(meta archive.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[meta.ID] = meta
	return c.save()
}

func (c *Catalog) save() error {
	b, err := json.Marshal(c.byID)
	if err != nil {
		return fmt.Errorf("retrieve: marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("retrieve: mkdir catalog dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("retrieve: write catalog: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("retrieve: promote catalog: %w", err)
	}
	return nil
}

// Get returns the catalog entry for id, if present.
func (c *Catalog) Get(id string) (archive.Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byID[id]
	return m, ok
}

// Candidates returns every archive whose [period_start, period_end]
// overlaps [start, end].
func (c *Catalog) Candidates(start, end time.Time) []archive.Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []archive.Metadata
	for _, m := range c.byID {
		if m.PeriodEnd.Before(start) || m.PeriodStart.After(end) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Package store reads segments back off disk for consumers downstream
// of the sequencer: internal/export streams events out of a range, and
// internal/monitor replays sealed segments to re-verify the chain
// (spec.md §4.G, §4.H). Both read paths are built on
// internal/chain.ReadSegmentFile, the same segment framing the
// sequencer writes.
package store

import (
	"context"
	"fmt"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/batch"
	"github.com/wolfe-services/tachikoma-audit/internal/chain"
	"github.com/wolfe-services/tachikoma-audit/internal/monitor"
)

// Reader lists and loads every sealed segment under a chain directory,
// satisfying monitor.SegmentSource.
type Reader struct {
	dir string
}

// NewReader builds a Reader over the segment directory dir (the same
// directory a chain.Sequencer was configured with).
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// ListSealed returns every sealed segment under dir, in ascending n_lo
// order (monitor.SegmentSource).
func (r *Reader) ListSealed(ctx context.Context) ([]monitor.SealedSegment, error) {
	paths, err := chain.ListSegmentPaths(r.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list segments: %w", err)
	}

	out := make([]monitor.SealedSegment, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := chain.ReadSegmentFile(p)
		if err != nil {
			return nil, fmt.Errorf("store: read segment %s: %w", p, err)
		}
		if !rec.Sealed {
			continue // still open for appends; the monitor only replays sealed history
		}
		out = append(out, monitor.SealedSegment{
			Path:       rec.Path,
			Header:     rec.Header,
			Links:      rec.Links,
			MerkleRoot: rec.Trailer.MerkleRoot,
			Signature:  rec.Trailer.Signature,
		})
	}
	return out, nil
}

// Cursor streams every link across every segment (sealed or still
// open) under a directory in ascending n order starting at FromN,
// decoding each link's stored canonical event bytes back into an
// audit.Event. It satisfies internal/export.Source.
type Cursor struct {
	dir   string
	fromN uint64

	listed  bool
	paths   []string
	pathIdx int

	links   []chain.Link
	linkIdx int
}

// NewCursor builds a Cursor over dir, yielding only links with n >=
// fromN (0 means from the beginning).
func NewCursor(dir string, fromN uint64) *Cursor {
	return &Cursor{dir: dir, fromN: fromN}
}

// Next returns the next item in ascending n order, or ok=false once
// every segment has been exhausted.
func (c *Cursor) Next(ctx context.Context) (batch.Item, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return batch.Item{}, false, err
		}

		if c.linkIdx < len(c.links) {
			link := c.links[c.linkIdx]
			c.linkIdx++
			if link.N < c.fromN {
				continue
			}
			e, err := audit.DecodeCanonicalEvent(link.EventBytes)
			if err != nil {
				return batch.Item{}, false, fmt.Errorf("store: decode event n=%d: %w", link.N, err)
			}
			return batch.Item{N: link.N, Event: e}, true, nil
		}

		if !c.listed {
			paths, err := chain.ListSegmentPaths(c.dir)
			if err != nil {
				return batch.Item{}, false, fmt.Errorf("store: list segments: %w", err)
			}
			c.paths = paths
			c.listed = true
		}
		if c.pathIdx >= len(c.paths) {
			return batch.Item{}, false, nil
		}

		rec, err := chain.ReadSegmentFile(c.paths[c.pathIdx])
		if err != nil {
			return batch.Item{}, false, fmt.Errorf("store: read segment %s: %w", c.paths[c.pathIdx], err)
		}
		c.pathIdx++
		c.links = rec.Links
		c.linkIdx = 0
	}
}

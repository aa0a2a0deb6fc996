// Package archive bundles sealed segments into cold-storage archive
// objects and verifies them (spec.md §4.I), grounded on
// original_source/tachikoma-audit-archival/src/archive.rs's
// ArchiveMetadata/ArchiveIndex/CompressionType/ArchiveLocation shapes.
package archive

import "time"

// FormatVersion is the on-disk archive object layout version.
const FormatVersion uint32 = 1

// CompressionType selects the codec an archive's payload is compressed
// with (spec.md §4.I: "compression {none, gzip, zstd, lz4}").
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
	CompressionLZ4  CompressionType = "lz4"
)

// Extension returns the conventional file extension for c.
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// SegmentSeal copies one included segment's verification material into
// the archive so the archive is self-contained (spec.md §4.I: "a copy
// of each included segment's Merkle root, signature, and the public key
// id used").
type SegmentSeal struct {
	NLo        uint64
	KeyID      uint32
	Genesis    [32]byte
	MerkleRoot [32]byte
	Signature  []byte
}

// Metadata describes one archive object (spec.md §4.I: "ArchiveMetadata:
// id, creation time, event-time bounds, event count, original size,
// compressed size, compression, checksum of the compressed bytes,
// format version, has_index").
type Metadata struct {
	ID             string
	CreatedAt      time.Time
	PeriodStart    time.Time
	PeriodEnd      time.Time
	EventCount     uint64
	OriginalSize   uint64
	CompressedSize uint64
	Compression    CompressionType
	Checksum       string // hex sha256 of the compressed payload bytes
	FormatVersion  uint32
	HasIndex       bool
	Segments       []SegmentSeal
}

// IndexEntry locates one event's bytes within the archive's uncompressed,
// concatenated segment stream (spec.md §4.I: "ArchiveIndex: per-event
// {event_id, timestamp, category, action, offset, length} in the
// compressed stream — computed on uncompressed bytes").
type IndexEntry struct {
	EventID   string
	Timestamp time.Time
	Category  string
	Action    string
	Offset    uint64
	Length    uint32
}

// Index is the full per-event lookup table for one archive.
type Index struct {
	ArchiveID string
	Entries   []IndexEntry
	CreatedAt time.Time
}

// SearchByTime returns every entry with a timestamp in [start, end].
func (idx Index) SearchByTime(start, end time.Time) []IndexEntry {
	var out []IndexEntry
	for _, e := range idx.Entries {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, e)
		}
	}
	return out
}

// SearchByCategory returns every entry tagged with the given category.
func (idx Index) SearchByCategory(category string) []IndexEntry {
	var out []IndexEntry
	for _, e := range idx.Entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

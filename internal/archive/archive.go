package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/archive/store"
	"github.com/wolfe-services/tachikoma-audit/internal/chain"
	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

// CreateRequest names the whole sealed segments to bundle into one
// archive object (spec.md §4.I: "An archive contains one or more whole
// segments, never splitting a segment").
type CreateRequest struct {
	ID          string
	Segments    []chain.SegmentRecord
	Compression CompressionType
	WithIndex   bool
}

// Create builds one archive object from req.Segments and uploads it to
// loc via backend. Segments must already be sealed and are archived in
// the order given, which must be the chain's own ascending order.
func Create(ctx context.Context, req CreateRequest, backend store.Backend, loc store.Location) (Metadata, error) {
	if len(req.Segments) == 0 {
		return Metadata{}, fmt.Errorf("archive: no segments given")
	}
	for _, seg := range req.Segments {
		if !seg.Sealed {
			return Metadata{}, fmt.Errorf("archive: segment %s is not sealed", seg.Path)
		}
	}

	var raw bytes.Buffer
	var entries []IndexEntry
	var segSeals []SegmentSeal
	var periodStart, periodEnd time.Time
	var eventCount uint64

	for _, seg := range req.Segments {
		if err := ctx.Err(); err != nil {
			return Metadata{}, err
		}
		segBytes, err := os.ReadFile(seg.Path)
		if err != nil {
			return Metadata{}, fmt.Errorf("archive: read segment %s: %w", seg.Path, err)
		}

		segOffset := uint64(raw.Len())
		raw.Write(segBytes)

		segSeals = append(segSeals, SegmentSeal{
			NLo:        seg.Header.NLo,
			KeyID:      seg.Header.KeyID,
			Genesis:    seg.Header.Genesis,
			MerkleRoot: seg.Trailer.MerkleRoot,
			Signature:  seg.Trailer.Signature,
		})

		off := segOffset + uint64(chain.HeaderSize)
		for _, link := range seg.Links {
			eventCount++
			length := uint32(chain.FrameSize(len(link.EventBytes)))
			if req.WithIndex {
				e, err := audit.DecodeCanonicalEvent(link.EventBytes)
				if err != nil {
					return Metadata{}, fmt.Errorf("archive: decode event n=%d: %w", link.N, err)
				}
				entries = append(entries, IndexEntry{
					EventID:   e.ID.String(),
					Timestamp: e.Timestamp,
					Category:  string(e.Category),
					Action:    string(e.Action),
					Offset:    off,
					Length:    length,
				})
				if periodStart.IsZero() || e.Timestamp.Before(periodStart) {
					periodStart = e.Timestamp
				}
				if e.Timestamp.After(periodEnd) {
					periodEnd = e.Timestamp
				}
			}
			off += uint64(length)
		}
	}

	originalSize := uint64(raw.Len())

	var compressed bytes.Buffer
	cw, err := newCompressWriter(&compressed, req.Compression)
	if err != nil {
		return Metadata{}, err
	}
	if _, err := io.Copy(cw, bytes.NewReader(raw.Bytes())); err != nil {
		return Metadata{}, fmt.Errorf("archive: compress payload: %w", err)
	}
	if err := cw.Close(); err != nil {
		return Metadata{}, fmt.Errorf("archive: finalize compression: %w", err)
	}

	sum := sha256.Sum256(compressed.Bytes())

	meta := Metadata{
		ID:             req.ID,
		CreatedAt:      time.Now().UTC(),
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		EventCount:     eventCount,
		OriginalSize:   originalSize,
		CompressedSize: uint64(compressed.Len()),
		Compression:    req.Compression,
		Checksum:       hex.EncodeToString(sum[:]),
		FormatVersion:  FormatVersion,
		HasIndex:       req.WithIndex,
		Segments:       segSeals,
	}

	index := Index{ArchiveID: req.ID, Entries: entries, CreatedAt: meta.CreatedAt}
	indexJSON, err := json.Marshal(index)
	if err != nil {
		return Metadata{}, fmt.Errorf("archive: marshal index: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return Metadata{}, fmt.Errorf("archive: marshal metadata: %w", err)
	}

	var obj bytes.Buffer
	obj.Write(compressed.Bytes())
	indexOffset := uint64(obj.Len())
	obj.Write(indexJSON)
	metaOffset := uint64(obj.Len())
	obj.Write(metaJSON)
	ft := footer{
		IndexOffset:    indexOffset,
		IndexLen:       uint64(len(indexJSON)),
		MetadataOffset: metaOffset,
		MetadataLen:    uint64(len(metaJSON)),
	}
	obj.Write(ft.encode())

	exists, err := backend.Exists(ctx, loc)
	if err != nil {
		return Metadata{}, fmt.Errorf("archive: check existing object: %w", err)
	}
	if exists {
		// An object already exists at loc: the upload is skipped and
		// this archive's metadata returned. The key is loc as given, not
		// derived from the archive id, and the existing object is not
		// compared with the one just built.
		return meta, nil
	}

	if err := backend.Put(ctx, loc, bytes.NewReader(obj.Bytes()), int64(obj.Len())); err != nil {
		return Metadata{}, fmt.Errorf("archive: upload: %w", err)
	}

	return meta, nil
}

// Opened is one archive object's parsed metadata and index, together
// with the full object bytes (compressed payload included) that
// ReadEvents and Verify slice from.
type Opened struct {
	Metadata Metadata
	Index    Index
	object   []byte // full object bytes, retained for payload slicing
}

// Open fetches loc from backend and parses its footer, metadata, and
// index, leaving the payload available for ReadEvents.
func Open(ctx context.Context, backend store.Backend, loc store.Location) (*Opened, error) {
	rc, err := backend.Get(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("archive: fetch object: %w", err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive: read object: %w", err)
	}
	if len(b) < footerSize {
		return nil, fmt.Errorf("archive: object too small to carry a footer")
	}

	ft, err := decodeFooter(b[len(b)-footerSize:])
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(b[ft.MetadataOffset:ft.MetadataOffset+ft.MetadataLen], &meta); err != nil {
		return nil, fmt.Errorf("archive: decode metadata: %w", err)
	}
	var index Index
	if err := json.Unmarshal(b[ft.IndexOffset:ft.IndexOffset+ft.IndexLen], &index); err != nil {
		return nil, fmt.Errorf("archive: decode index: %w", err)
	}

	return &Opened{Metadata: meta, Index: index, object: b}, nil
}

// Verify recomputes the compressed payload's checksum and re-verifies
// every included segment's seal signature against keyring, confirming
// the archive is self-consistent (spec.md §6: "archive verify --id=ID").
func (o *Opened) Verify(keyring *signer.Keyring) error {
	payload := o.compressedPayload()
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != o.Metadata.Checksum {
		return fmt.Errorf("archive: checksum mismatch")
	}
	for _, seg := range o.Metadata.Segments {
		header := chain.Header{
			Version: chain.SegmentFormatVersion,
			Genesis: seg.Genesis,
			KeyID:   seg.KeyID,
			NLo:     seg.NLo,
		}
		if err := keyring.VerifySeal(seg.KeyID, chain.EncodeHeaderForVerification(header), seg.MerkleRoot, seg.Signature); err != nil {
			return fmt.Errorf("archive: segment n_lo=%d signature invalid: %w", seg.NLo, err)
		}
	}
	return nil
}

func (o *Opened) compressedPayload() []byte {
	end := len(o.object) - footerSize
	ft, _ := decodeFooter(o.object[end:])
	return o.object[:ft.IndexOffset]
}

// ReadEvents decompresses the full payload and decodes every event at
// entries (e.g. the result of Index.SearchByTime/SearchByCategory).
func (o *Opened) ReadEvents(entries []IndexEntry) ([]audit.Event, error) {
	dr, err := newDecompressReader(bytes.NewReader(o.compressedPayload()), o.Metadata.Compression)
	if err != nil {
		return nil, fmt.Errorf("archive: open decompressor: %w", err)
	}
	defer dr.Close()

	raw, err := io.ReadAll(dr)
	if err != nil {
		return nil, fmt.Errorf("archive: decompress payload: %w", err)
	}

	out := make([]audit.Event, 0, len(entries))
	for _, e := range entries {
		if uint64(len(raw)) < e.Offset+uint64(e.Length) {
			return nil, fmt.Errorf("archive: index entry %s out of bounds", e.EventID)
		}
		frame := raw[e.Offset : e.Offset+uint64(e.Length)]
		link, _, err := chain.DecodeLinkBytes(frame)
		if err != nil {
			return nil, fmt.Errorf("archive: decode link for %s: %w", e.EventID, err)
		}
		ev, err := audit.DecodeCanonicalEvent(link.EventBytes)
		if err != nil {
			return nil, fmt.Errorf("archive: decode event %s: %w", e.EventID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

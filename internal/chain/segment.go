// Package chain implements the single-writer hash-chain sequencer
// (spec.md §4.D) and its on-disk segment/head formats (spec.md §6). The
// sequencer is the sole assigner of n and owner of the open segment
// file; everything else in the pipeline reads sealed state.
package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

// MagicHeader opens every segment file (spec.md §6: "MAGIC(8)").
var MagicHeader = [8]byte{'T', 'K', 'A', 'U', 'D', 'S', 'E', 'G'}

// MagicTrailer opens a segment's trailer once it has been sealed.
var MagicTrailer = [8]byte{'T', 'K', 'A', 'U', 'D', 'T', 'R', 'L'}

// SegmentFormatVersion is the on-disk layout version written in every
// segment header.
const SegmentFormatVersion uint32 = 1

// Header is the fixed-size record at the start of every segment file:
// MAGIC(8) | VERSION(u32) | GENESIS(32) | KEY_ID(u32) | N_LO(u64).
type Header struct {
	Version uint32
	Genesis [32]byte
	KeyID   uint32
	NLo     uint64 // n of the first link in this segment
}

func (h Header) encode() []byte {
	var buf bytes.Buffer
	buf.Write(MagicHeader[:])
	writeU32(&buf, h.Version)
	buf.Write(h.Genesis[:])
	writeU32(&buf, h.KeyID)
	writeU64(&buf, h.NLo)
	return buf.Bytes()
}

func decodeHeader(r io.Reader) (Header, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return Header{}, fmt.Errorf("segment header magic: %w", err)
	}
	if magic != MagicHeader {
		return Header{}, fmt.Errorf("segment header magic mismatch: %x", magic)
	}
	var h Header
	var err error
	if h.Version, err = readU32(r); err != nil {
		return Header{}, err
	}
	if _, err := io.ReadFull(r, h.Genesis[:]); err != nil {
		return Header{}, err
	}
	if h.KeyID, err = readU32(r); err != nil {
		return Header{}, err
	}
	if h.NLo, err = readU64(r); err != nil {
		return Header{}, err
	}
	return h, nil
}

// HeaderSize is the fixed byte length of an encoded Header.
const HeaderSize = 8 + 4 + 32 + 4 + 8

// EncodeHeaderForVerification returns the exact bytes the signer signs
// alongside a segment's Merkle root (spec.md §4.F). Exported so
// internal/monitor can recompute the same signed digest the sequencer
// fed to internal/signer.Keyring.Seal at close time.
func EncodeHeaderForVerification(h Header) []byte {
	return h.encode()
}

// Link is a single chained record appended to an open segment
// (spec.md §6: "repeated link frames").
type Link struct {
	N           uint64
	EventBytes  []byte // the event's canonical encoding, as stored
	EventHash   [32]byte
	PrevDigest  [32]byte
	LinkDigest  [32]byte
	ReceivedAt  int64 // UnixNano
}

// EventHash returns H(canonical(event)) (spec.md §4.D step 2).
func EventHash(e audit.Event) [32]byte {
	return sha256.Sum256(e.CanonicalBytes())
}

// LinkDigest returns H(n ‖ event_hash ‖ prev_digest) (spec.md §4.D step 3).
func LinkDigest(n uint64, eventHash, prevDigest [32]byte) [32]byte {
	h := sha256.New()
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], n)
	h.Write(nb[:])
	h.Write(eventHash[:])
	h.Write(prevDigest[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// encode serializes a link frame: LEN(u32) | EVENT_BYTES | N(u64) |
// EVENT_HASH(32) | PREV_DIGEST(32) | LINK_DIGEST(32) | RECV_TIME(i64).
func (l Link) encode() []byte {
	var buf bytes.Buffer
	writeU32(&buf, uint32(len(l.EventBytes)))
	buf.Write(l.EventBytes)
	writeU64(&buf, l.N)
	buf.Write(l.EventHash[:])
	buf.Write(l.PrevDigest[:])
	buf.Write(l.LinkDigest[:])
	writeI64(&buf, l.ReceivedAt)
	return buf.Bytes()
}

// frameSize returns the total encoded size of a link carrying
// eventLen bytes of canonical event data.
func frameSize(eventLen int) int64 {
	return int64(4 + eventLen + 8 + 32 + 32 + 32 + 8)
}

// FrameSize is frameSize exported for readers (internal/archive) that
// need a link's encoded byte length without re-encoding it, e.g. to
// compute an archive index entry's offset/length within a segment's
// raw bytes.
func FrameSize(eventLen int) int64 {
	return frameSize(eventLen)
}

// decodeLink reads one link frame from r. It returns io.ErrUnexpectedEOF
// (wrapped) if the frame is truncated, which callers use to detect and
// discard a partial trailing frame during crash recovery.
func decodeLink(r io.Reader) (Link, int64, error) {
	lenBuf, err := readU32Raw(r)
	if err == io.EOF {
		return Link{}, 0, io.EOF
	}
	if err != nil {
		return Link{}, 0, io.ErrUnexpectedEOF
	}

	eventBytes := make([]byte, lenBuf)
	if _, err := io.ReadFull(r, eventBytes); err != nil {
		return Link{}, 0, io.ErrUnexpectedEOF
	}

	var l Link
	l.EventBytes = eventBytes
	if l.N, err = readU64(r); err != nil {
		return Link{}, 0, io.ErrUnexpectedEOF
	}
	if _, err := io.ReadFull(r, l.EventHash[:]); err != nil {
		return Link{}, 0, io.ErrUnexpectedEOF
	}
	if _, err := io.ReadFull(r, l.PrevDigest[:]); err != nil {
		return Link{}, 0, io.ErrUnexpectedEOF
	}
	if _, err := io.ReadFull(r, l.LinkDigest[:]); err != nil {
		return Link{}, 0, io.ErrUnexpectedEOF
	}
	if l.ReceivedAt, err = readI64(r); err != nil {
		return Link{}, 0, io.ErrUnexpectedEOF
	}
	return l, frameSize(len(eventBytes)), nil
}

// DecodeLinkBytes decodes exactly one link frame from b, returning the
// number of bytes consumed. Used by internal/archive to pull a single
// event's frame out of an archive's decompressed, concatenated segment
// bytes at a previously indexed offset.
func DecodeLinkBytes(b []byte) (Link, int64, error) {
	return decodeLink(bytes.NewReader(b))
}

// Trailer is appended once a segment is sealed: TRAILER_MAGIC(8) |
// N_HI(u64) | MERKLE_ROOT(32) | SIG_LEN(u16) | SIG.
type Trailer struct {
	NHi        uint64
	MerkleRoot [32]byte
	Signature  []byte
}

func (t Trailer) encode() []byte {
	var buf bytes.Buffer
	buf.Write(MagicTrailer[:])
	writeU64(&buf, t.NHi)
	buf.Write(t.MerkleRoot[:])
	writeU16(&buf, uint16(len(t.Signature)))
	buf.Write(t.Signature)
	return buf.Bytes()
}

func decodeTrailer(r io.Reader) (Trailer, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return Trailer{}, err
	}
	if magic != MagicTrailer {
		return Trailer{}, fmt.Errorf("trailer magic mismatch: %x", magic)
	}
	var t Trailer
	var err error
	if t.NHi, err = readU64(r); err != nil {
		return Trailer{}, err
	}
	if _, err := io.ReadFull(r, t.MerkleRoot[:]); err != nil {
		return Trailer{}, err
	}
	sigLen, err := readU16(r)
	if err != nil {
		return Trailer{}, err
	}
	t.Signature = make([]byte, sigLen)
	if _, err := io.ReadFull(r, t.Signature); err != nil {
		return Trailer{}, err
	}
	return t, nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) {
	writeU64(buf, uint64(v))
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// readU32Raw is identical to readU32 but propagates a clean io.EOF (as
// opposed to io.ErrUnexpectedEOF) when nothing at all could be read —
// used at frame boundaries where EOF at frame-start is a normal end of
// segment, not corruption.
func readU32Raw(r io.Reader) (uint32, error) {
	var b [4]byte
	n, err := io.ReadFull(r, b[:])
	if n == 0 && err == io.EOF {
		return 0, io.EOF
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readI64(r io.Reader) (int64, error) {
	v, err := readU64(r)
	return int64(v), err
}

// openAppend opens path for appending, creating it if necessary.
func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

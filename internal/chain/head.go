package chain

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// HeadRecord is the small fixed-size record naming the tip of the chain
// (spec.md §6: "Head file"). It is rewritten via atomic swap on every
// append, the same temp-file-then-os.Rename idiom cmd/rigd/main.go uses
// for its rigd.addr file.
type HeadRecord struct {
	Version    uint32
	N          uint64
	PrevDigest [32]byte
	UpdatedAt  int64 // UnixNano
	Signature  []byte
}

func (h HeadRecord) encode() []byte {
	var buf bytes.Buffer
	writeU32(&buf, h.Version)
	writeU64(&buf, h.N)
	buf.Write(h.PrevDigest[:])
	writeI64(&buf, h.UpdatedAt)
	writeU16(&buf, uint16(len(h.Signature)))
	buf.Write(h.Signature)
	return buf.Bytes()
}

func decodeHeadRecord(r io.Reader) (HeadRecord, error) {
	var h HeadRecord
	var err error
	if h.Version, err = readU32(r); err != nil {
		return HeadRecord{}, err
	}
	if h.N, err = readU64(r); err != nil {
		return HeadRecord{}, err
	}
	if _, err := io.ReadFull(r, h.PrevDigest[:]); err != nil {
		return HeadRecord{}, err
	}
	if h.UpdatedAt, err = readI64(r); err != nil {
		return HeadRecord{}, err
	}
	sigLen, err := readU16(r)
	if err != nil {
		return HeadRecord{}, err
	}
	h.Signature = make([]byte, sigLen)
	if _, err := io.ReadFull(r, h.Signature); err != nil {
		return HeadRecord{}, err
	}
	return h, nil
}

// WriteHeadAtomic persists rec to path by writing a temp file in the
// same directory and renaming it over path — rename is atomic within a
// filesystem, so a reader never observes a partially-written head
// record (spec.md §4.D step 5: "written with a durable rename or
// equivalent atomic swap").
func WriteHeadAtomic(path string, rec HeadRecord) error {
	dir := filepath.Dir(path)
	tmp := path + ".tmp"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if err := os.WriteFile(tmp, rec.encode(), 0o644); err != nil {
		return fmt.Errorf("write head tmp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename head file: %w", err)
	}
	return nil
}

// ReadHead reads the current head record from path. It returns
// os.ErrNotExist if no head has ever been written (a fresh chain).
func ReadHead(path string) (HeadRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return HeadRecord{}, err
	}
	return decodeHeadRecord(bytes.NewReader(b))
}

func nowUnixNano() int64 {
	return time.Now().UTC().UnixNano()
}

package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// footerMagic opens the trailing footer every archive object ends with
// (spec.md §6: "Archive object... payload... plus a trailing footer
// pointing at the embedded index and metadata").
var footerMagic = [8]byte{'T', 'K', 'A', 'U', 'A', 'R', 'C', 'H'}

// footerSize is the fixed encoded size of a footer record.
const footerSize = 8 + 8 + 8 + 8 + 8

// footer locates the index and metadata blocks appended after an
// archive's compressed payload.
type footer struct {
	IndexOffset    uint64
	IndexLen       uint64
	MetadataOffset uint64
	MetadataLen    uint64
}

func (f footer) encode() []byte {
	var buf bytes.Buffer
	buf.Write(footerMagic[:])
	binary.Write(&buf, binary.BigEndian, f.IndexOffset)
	binary.Write(&buf, binary.BigEndian, f.IndexLen)
	binary.Write(&buf, binary.BigEndian, f.MetadataOffset)
	binary.Write(&buf, binary.BigEndian, f.MetadataLen)
	return buf.Bytes()
}

func decodeFooter(b []byte) (footer, error) {
	if len(b) != footerSize {
		return footer{}, fmt.Errorf("archive: footer has %d bytes, want %d", len(b), footerSize)
	}
	r := bytes.NewReader(b)
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return footer{}, err
	}
	if magic != footerMagic {
		return footer{}, fmt.Errorf("archive: footer magic mismatch: %x", magic)
	}
	var f footer
	for _, field := range []*uint64{&f.IndexOffset, &f.IndexLen, &f.MetadataOffset, &f.MetadataLen} {
		if err := binary.Read(r, binary.BigEndian, field); err != nil {
			return footer{}, err
		}
	}
	return f, nil
}

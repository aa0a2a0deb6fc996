package chain

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// SegmentRecord is one fully-parsed segment file, for readers that only
// ever consume already-written segments: internal/export (streaming
// events back out) and internal/monitor (recomputing the chain to
// detect tampering). Unlike scanSegment's recovery-path return values,
// it keeps every link's full fields, not just the rolling digest.
type SegmentRecord struct {
	Path    string
	Header  Header
	Links   []Link
	Sealed  bool
	Trailer Trailer
}

// ListSegmentPaths returns every segment file under dir in ascending
// n_lo order.
func ListSegmentPaths(dir string) ([]string, error) {
	return listSegments(dir)
}

// ReadSegmentFile parses path's header, every link frame in order, and
// its trailer if the segment has been sealed. An unsealed segment
// (still open for appends, or crashed mid-write) is returned with
// Sealed=false and whatever complete link frames it holds; a trailing
// partial frame is silently dropped, mirroring scanSegment's recovery
// behaviour but without mutating the file.
func ReadSegmentFile(path string) (SegmentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return SegmentRecord{}, err
	}
	defer f.Close()

	header, err := decodeHeader(f)
	if err != nil {
		return SegmentRecord{}, fmt.Errorf("chain: decode header: %w", err)
	}

	rec := SegmentRecord{Path: path, Header: header}
	br := bufio.NewReader(f)

	for {
		peek, perr := br.Peek(len(MagicTrailer))
		if perr == nil && bytes.Equal(peek, MagicTrailer[:]) {
			trailer, terr := decodeTrailer(br)
			if terr != nil {
				return SegmentRecord{}, fmt.Errorf("chain: decode trailer: %w", terr)
			}
			rec.Sealed = true
			rec.Trailer = trailer
			return rec, nil
		}

		link, _, lerr := decodeLink(br)
		if errors.Is(lerr, io.EOF) || errors.Is(lerr, io.ErrUnexpectedEOF) {
			return rec, nil
		}
		if lerr != nil {
			return SegmentRecord{}, fmt.Errorf("chain: decode link: %w", lerr)
		}
		rec.Links = append(rec.Links, link)
	}
}

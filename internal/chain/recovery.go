package chain

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// recover reopens the last segment (if any), scans forward from the
// last persisted head, recomputes prev_digest across the surviving
// frames, truncates any trailing partial frame, and leaves the
// sequencer ready to resume at n+1 (spec.md §4.D: "Crash recovery
// reopens the last segment, scans forward from the last head,
// recomputes prev_digest, truncates any trailing partial frame, and
// resumes at n+1. Recovery is idempotent.").
func (s *Sequencer) recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prevDigest = s.cfg.GenesisDigest
	s.n = 0

	segments, err := listSegments(s.cfg.Dir)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return nil // fresh chain; the first Append lazily opens segment 1
	}

	last := segments[len(segments)-1]
	sealed, n, prevDigest, linkHashes, header, err := scanSegment(last, s.cfg.GenesisDigest)
	if err != nil {
		return fmt.Errorf("chain: scan segment %s: %w", last, err)
	}

	s.n = n
	s.prevDigest = prevDigest

	if sealed {
		// The last segment already carries a trailer; leave s.segFile nil
		// so the next Append opens a fresh segment at n+1.
		s.segFile = nil
		s.segPath = ""
		s.segLinkHashes = nil
		return nil
	}

	f, err := os.OpenFile(last, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen %s for append: %w", last, err)
	}

	s.segFile = f
	s.segPath = last
	s.segHeader = header
	s.segLinkHashes = linkHashes
	s.segOpenedAt = fileModTime(last)

	if head, herr := ReadHead(s.cfg.HeadPath); herr == nil {
		if head.N != s.n || head.PrevDigest != s.prevDigest {
			s.log.Warn().
				Uint64("head_n", head.N).
				Uint64("recovered_n", s.n).
				Msg("chain: recovered state diverges from head record; trusting recomputed chain")
		}
	}

	return nil
}

// scanSegment reads path's header, replays its link frames recomputing
// the hash chain from genesis, and reports whether the segment carries
// a trailer (sealed) or ends in a clean or truncated state (open). A
// truncated trailing frame is cut from the file so appends resume
// cleanly (spec.md §4.D: "truncates any trailing partial frame").
func scanSegment(path string, genesis [32]byte) (sealed bool, n uint64, prevDigest [32]byte, linkHashes [][32]byte, header Header, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return false, 0, [32]byte{}, nil, Header{}, err
	}
	defer f.Close()

	header, err = decodeHeader(f)
	if err != nil {
		return false, 0, [32]byte{}, nil, Header{}, fmt.Errorf("decode header: %w", err)
	}
	if header.Genesis != genesis && genesis != ([32]byte{}) {
		return false, 0, [32]byte{}, nil, Header{}, fmt.Errorf("genesis mismatch")
	}

	prev := genesis
	offset := int64(HeaderSize)
	br := bufio.NewReader(f)

	for {
		peek, perr := br.Peek(len(MagicTrailer))
		if perr == nil && bytes.Equal(peek, MagicTrailer[:]) {
			if _, terr := decodeTrailer(br); terr != nil {
				return false, 0, [32]byte{}, nil, Header{}, fmt.Errorf("decode trailer: %w", terr)
			}
			return true, n, prev, linkHashes, header, nil
		}

		link, size, lerr := decodeLink(br)
		if errors.Is(lerr, io.EOF) {
			break // clean end of segment with no trailer yet: still open
		}
		if errors.Is(lerr, io.ErrUnexpectedEOF) {
			if terr := f.Truncate(offset); terr != nil {
				return false, 0, [32]byte{}, nil, Header{}, fmt.Errorf("truncate partial frame: %w", terr)
			}
			break
		}
		if lerr != nil {
			return false, 0, [32]byte{}, nil, Header{}, fmt.Errorf("decode link: %w", lerr)
		}

		want := LinkDigest(link.N, link.EventHash, prev)
		if want != link.LinkDigest {
			return false, 0, [32]byte{}, nil, Header{}, fmt.Errorf("link %d digest mismatch on recovery", link.N)
		}
		prev = link.LinkDigest
		n = link.N
		linkHashes = append(linkHashes, link.LinkDigest)
		offset += size
	}

	return false, n, prev, linkHashes, header, nil
}

func listSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".seg" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func fileModTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Now()
	}
	return fi.ModTime()
}

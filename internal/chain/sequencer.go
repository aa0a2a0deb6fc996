package chain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
	"github.com/wolfe-services/tachikoma-audit/internal/batch"
	"github.com/wolfe-services/tachikoma-audit/internal/capture"
	"github.com/wolfe-services/tachikoma-audit/internal/metrics"
)

// Anchorer seals a segment: it computes the Merkle root over the
// segment's link digests and signs it under the keyring's current key.
// Implemented by internal/merkle + internal/signer together; injected
// here so this package stays independent of the signing stack.
type Anchorer interface {
	CurrentKeyID() uint32
	Seal(ctx context.Context, keyID uint32, headerBytes []byte, linkDigests [][32]byte) (root [32]byte, sig []byte, err error)
}

// Config bounds a segment's lifetime (spec.md §4.D rollover conditions,
// named in §6 as segment_max_events / segment_max_age).
type Config struct {
	Dir              string
	HeadPath         string
	GenesisDigest    [32]byte
	SegmentMaxEvents int
	SegmentMaxAge    time.Duration
}

// Sequencer is the single logical writer of the hash chain (spec.md
// §5: "The sequencer is a single logical writer"). All state mutation
// happens while holding mu; Run drives it from a single goroutine
// reading off a capture.Queue, so the lock mostly protects readers
// (CurrentHead) rather than arbitrating between writers.
type Sequencer struct {
	mu sync.Mutex

	cfg      Config
	anchorer Anchorer
	batches  *batch.Collector
	metrics  *metrics.Recorder
	log      zerolog.Logger

	n          uint64
	prevDigest [32]byte

	segFile       *os.File
	segPath       string
	segHeader     Header
	segLinkHashes [][32]byte
	segOpenedAt   time.Time

	halted    bool
	haltedErr error
}

// Open recovers any existing chain state under cfg.Dir/cfg.HeadPath
// (see recovery.go) and prepares the sequencer to accept further
// events, opening a fresh segment if none is open.
func Open(ctx context.Context, cfg Config, anchorer Anchorer, batches *batch.Collector, m *metrics.Recorder, log zerolog.Logger) (*Sequencer, error) {
	s := &Sequencer{
		cfg:      cfg,
		anchorer: anchorer,
		batches:  batches,
		metrics:  m,
		log:      log,
	}
	if err := s.recover(ctx); err != nil {
		return nil, fmt.Errorf("chain: recovery: %w", err)
	}
	return s, nil
}

// CurrentHead returns the sequencer's current (n, prevDigest) tip.
func (s *Sequencer) CurrentHead() (uint64, [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n, s.prevDigest
}

// Run drains q sequentially, sequencing each event in arrival order,
// until ctx is cancelled or q is closed. This is the sequencer's single
// reader goroutine — spec.md §5's "single logical writer".
func (s *Sequencer) Run(ctx context.Context, q *capture.Queue) {
	for {
		e, ok := q.Next(ctx)
		if !ok {
			return
		}
		if _, err := s.Append(ctx, e); err != nil {
			s.log.Error().Err(err).Msg("sequencer: append failed")
		}
	}
}

// Append assigns the next n to e, computes its event_hash and
// link_digest, appends the frame to the open segment, and durably
// advances the head record (spec.md §4.D). If the chain has halted
// following a prior fatal I/O error, Append fails fast with
// auditerr.ErrChainHalted.
func (s *Sequencer) Append(ctx context.Context, e audit.Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return 0, fmt.Errorf("%w: %v", auditerr.ErrChainHalted, s.haltedErr)
	}

	canonical := e.CanonicalBytes()
	if len(canonical) == 0 {
		return 0, fmt.Errorf("%w: empty canonical encoding", auditerr.ErrCanonicalizationFailed)
	}

	if s.segFile == nil {
		if err := s.openSegmentLocked(s.n + 1); err != nil {
			s.haltLocked(err)
			return 0, err
		}
	} else if s.rolloverDueLocked() {
		// Sealing failure (e.g. signer unavailable) is non-fatal: the
		// segment stays open past its rollover threshold and a retry is
		// scheduled, while producers keep being served (spec.md §4.F:
		// "segment is left open and a retry is scheduled; producers
		// continue to be served by the current open segment").
		if err := s.sealCurrentLocked(ctx); err != nil {
			s.log.Error().Err(err).Msg("chain: seal failed at rollover, segment remains open for retry")
		} else if err := s.openSegmentLocked(s.n + 1); err != nil {
			s.haltLocked(err)
			return 0, err
		}
	}

	n := s.n + 1
	eventHash := EventHash(e)
	linkDigest := LinkDigest(n, eventHash, s.prevDigest)

	link := Link{
		N:          n,
		EventBytes: canonical,
		EventHash:  eventHash,
		PrevDigest: s.prevDigest,
		LinkDigest: linkDigest,
		ReceivedAt: e.ReceivedAt.UTC().UnixNano(),
	}

	if _, err := s.segFile.Write(link.encode()); err != nil {
		werr := fmt.Errorf("%w: append link: %v", auditerr.ErrIOFailed, err)
		s.haltLocked(werr)
		return 0, werr
	}
	if err := s.segFile.Sync(); err != nil {
		werr := fmt.Errorf("%w: sync segment: %v", auditerr.ErrIOFailed, err)
		s.haltLocked(werr)
		return 0, werr
	}

	head := HeadRecord{
		Version:    SegmentFormatVersion,
		N:          n,
		PrevDigest: linkDigest,
		UpdatedAt:  nowUnixNano(),
	}
	if err := WriteHeadAtomic(s.cfg.HeadPath, head); err != nil {
		werr := fmt.Errorf("%w: write head: %v", auditerr.ErrIOFailed, err)
		s.haltLocked(werr)
		return 0, werr
	}

	s.n = n
	s.prevDigest = linkDigest
	s.segLinkHashes = append(s.segLinkHashes, linkDigest)

	if s.batches != nil {
		s.batches.Add(batch.Item{N: n, Event: e})
	}

	if s.rolloverDueLocked() {
		if err := s.sealCurrentLocked(ctx); err != nil {
			s.log.Error().Err(err).Msg("chain: seal failed at rollover, segment remains open for retry")
		}
	}

	return n, nil
}

// RetrySeal attempts to seal the currently open segment if it is past
// its rollover threshold, for a background caller to invoke after a
// prior seal attempt failed (spec.md §4.F: "a retry is scheduled").
// It is a no-op if no segment is open or rollover isn't due.
func (s *Sequencer) RetrySeal(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.segFile == nil || !s.rolloverDueLocked() {
		return nil
	}
	if err := s.sealCurrentLocked(ctx); err != nil {
		return err
	}
	return s.openSegmentLocked(s.n + 1)
}

func (s *Sequencer) haltLocked(err error) {
	s.halted = true
	s.haltedErr = err
	s.log.Error().Err(err).Msg("chain: sequencer halted")
}

func (s *Sequencer) rolloverDueLocked() bool {
	if s.segFile == nil {
		return false
	}
	if s.cfg.SegmentMaxEvents > 0 && len(s.segLinkHashes) >= s.cfg.SegmentMaxEvents {
		return true
	}
	if s.cfg.SegmentMaxAge > 0 && time.Since(s.segOpenedAt) >= s.cfg.SegmentMaxAge {
		return true
	}
	return false
}

func (s *Sequencer) segmentPath(nLo uint64) string {
	return filepath.Join(s.cfg.Dir, fmt.Sprintf("segment-%020d.seg", nLo))
}

// openSegmentLocked creates (or reopens, during recovery) the segment
// file starting at nLo and writes its header if it is new.
func (s *Sequencer) openSegmentLocked(nLo uint64) error {
	path := s.segmentPath(nLo)
	isNew := true
	if _, err := os.Stat(path); err == nil {
		isNew = false
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir segment dir: %v", auditerr.ErrIOFailed, err)
	}

	f, err := openAppend(path)
	if err != nil {
		return fmt.Errorf("%w: open segment: %v", auditerr.ErrIOFailed, err)
	}

	header := Header{
		Version: SegmentFormatVersion,
		Genesis: s.cfg.GenesisDigest,
		KeyID:   s.anchorer.CurrentKeyID(),
		NLo:     nLo,
	}
	if isNew {
		if _, err := f.Write(header.encode()); err != nil {
			f.Close()
			return fmt.Errorf("%w: write segment header: %v", auditerr.ErrIOFailed, err)
		}
	}

	s.segFile = f
	s.segPath = path
	s.segHeader = header
	s.segLinkHashes = nil
	s.segOpenedAt = time.Now()
	return nil
}

// sealCurrentLocked appends the trailer to the current segment (Merkle
// root + signature over its link digests) and closes it. A segment with
// no links yet (freshly opened, nothing appended) is left unsealed
// rather than writing a degenerate trailer.
func (s *Sequencer) sealCurrentLocked(ctx context.Context) error {
	if s.segFile == nil || len(s.segLinkHashes) == 0 {
		if s.segFile != nil {
			s.segFile.Close()
			s.segFile = nil
		}
		return nil
	}

	root, sig, err := s.anchorer.Seal(ctx, s.segHeader.KeyID, s.segHeader.encode(), s.segLinkHashes)
	if err != nil {
		return fmt.Errorf("%w: seal segment: %v", auditerr.ErrSignatureFailed, err)
	}

	trailer := Trailer{
		NHi:        s.n,
		MerkleRoot: root,
		Signature:  sig,
	}
	if _, err := s.segFile.Write(trailer.encode()); err != nil {
		return fmt.Errorf("%w: write trailer: %v", auditerr.ErrIOFailed, err)
	}
	if err := s.segFile.Sync(); err != nil {
		return fmt.Errorf("%w: sync trailer: %v", auditerr.ErrIOFailed, err)
	}
	if err := s.segFile.Close(); err != nil {
		return fmt.Errorf("%w: close segment: %v", auditerr.ErrIOFailed, err)
	}
	s.log.Info().Str("segment", s.segPath).Uint64("n_hi", s.n).Msg("segment sealed")
	if s.metrics != nil {
		s.metrics.SegmentSealed(ctx)
	}
	s.segFile = nil
	return nil
}

// Close flushes and seals any open segment. Call on graceful shutdown.
func (s *Sequencer) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealCurrentLocked(ctx)
}

// Package monitor runs the background integrity verifier (spec.md
// §4.G): it periodically replays every sealed segment, checking link
// continuity, Merkle consistency, head attestation freshness, and
// cross-segment boundaries, and records its own findings as audit
// events so the log carries its own verification history. The
// supervised loop is grounded on
// matgreaves-rig/internal/server/lifecycle.go's use of
// github.com/matgreaves/run for cancellable step composition.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/matgreaves/run"
	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/chain"
	"github.com/wolfe-services/tachikoma-audit/internal/merkle"
	"github.com/wolfe-services/tachikoma-audit/internal/metrics"
	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

// IssueKind enumerates the ways the monitor can find the chain
// inconsistent (spec.md §4.G).
type IssueKind string

const (
	IssueGap              IssueKind = "gap"
	IssueOutOfOrder       IssueKind = "out_of_order"
	IssueDigestMismatch   IssueKind = "digest_mismatch"
	IssueRootMismatch     IssueKind = "root_mismatch"
	IssueSignatureInvalid IssueKind = "signature_invalid"
	IssueStaleHead        IssueKind = "stale_head"
	IssueBoundaryMismatch IssueKind = "boundary_mismatch"
	IssueMissingSegment   IssueKind = "missing_segment"
)

// IssueSeverity mirrors the four-level scale spec.md §4.G defines for
// IntegrityIssue, distinct from audit.Severity's five levels.
type IssueSeverity string

const (
	SeverityInfo     IssueSeverity = "info"
	SeverityWarning  IssueSeverity = "warning"
	SeverityError    IssueSeverity = "error"
	SeverityCritical IssueSeverity = "critical"
)

// Issue is one finding from a verification pass (spec.md §4.G:
// "IntegrityIssue { segment_id, sequence_range, kind, severity,
// detected_at, evidence }").
type Issue struct {
	SegmentID     string
	SequenceRange [2]uint64
	Kind          IssueKind
	Severity      IssueSeverity
	DetectedAt    time.Time
	Evidence      string
}

// SegmentSource supplies the sealed segments the monitor replays. It
// is satisfied by a segment-store reader; defined here so monitor has
// no import-cycle dependency on that package.
type SegmentSource interface {
	// ListSealed returns sealed segments in ascending n_lo order.
	ListSealed(ctx context.Context) ([]SealedSegment, error)
}

// SealedSegment is the replayable shape of one sealed segment: its
// header, its links in file order (each carrying the fields needed to
// recompute event_hash/link_digest), and its trailer.
type SealedSegment struct {
	Path       string
	Header     chain.Header
	Links      []chain.Link
	MerkleRoot [32]byte
	Signature  []byte
}

// HeadSource reports the live chain tip and, when known, the age of
// the most recent live head attestation, for freshness checks.
type HeadSource interface {
	CurrentHead() (uint64, [32]byte)
	LastAttestation() (signer.HeadAttestation, time.Time, bool)
}

// Config bounds the monitor's polling cadence and head staleness
// tolerance (spec.md §6: monitor_interval).
type Config struct {
	Interval       time.Duration
	HeadStaleAfter time.Duration
}

// Monitor is the background re-verifier. Recorder is typically the
// same audit.Recorder the capture path uses, so the monitor's own
// findings are sequenced like any other event (spec.md §4.G: "the
// monitor itself records its findings as audit events of category
// security... the log records its own verification history").
type Monitor struct {
	cfg      Config
	segments SegmentSource
	head     HeadSource
	keyring  *signer.Keyring
	recorder audit.Recorder
	metrics  *metrics.Recorder
	log      zerolog.Logger

	suspect    bool
	lastIssues []Issue
}

func New(cfg Config, segments SegmentSource, head HeadSource, keyring *signer.Keyring, recorder audit.Recorder, m *metrics.Recorder, log zerolog.Logger) *Monitor {
	return &Monitor{cfg: cfg, segments: segments, head: head, keyring: keyring, recorder: recorder, metrics: m, log: log}
}

// Suspect reports whether a prior pass found a critical issue (spec.md
// §4.G: "Any critical issue causes the monitor to mark the chain as
// suspect; new writes continue but all verifiers are notified").
func (m *Monitor) Suspect() bool {
	return m.suspect
}

// Runner returns a run.Runner that ticks Monitor's verification pass
// on cfg.Interval until ctx is cancelled, in the style of
// matgreaves-rig's lifecycle Sequence/Func composition.
func (m *Monitor) Runner() run.Runner {
	return run.Func(func(ctx context.Context) error {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := m.Pass(ctx); err != nil {
					m.log.Error().Err(err).Msg("monitor: verification pass failed")
				}
			}
		}
	})
}

// Pass runs one full verification sweep and records any issues found.
func (m *Monitor) Pass(ctx context.Context) error {
	segments, err := m.segments.ListSealed(ctx)
	if err != nil {
		return fmt.Errorf("monitor: list sealed segments: %w", err)
	}

	var issues []Issue
	var prevTail [32]byte
	haveTail := false

	for _, seg := range segments {
		issues = append(issues, m.verifyLinkContinuity(seg)...)
		issues = append(issues, m.verifyMerkleConsistency(seg)...)
		if haveTail && len(seg.Links) > 0 {
			issues = append(issues, m.verifyBoundary(seg, prevTail)...)
		}
		if len(seg.Links) > 0 {
			prevTail = seg.Links[len(seg.Links)-1].LinkDigest
			haveTail = true
		}
	}

	issues = append(issues, m.verifyHeadFreshness()...)

	for _, issue := range issues {
		m.record(ctx, issue)
		if issue.Severity == SeverityCritical {
			m.suspect = true
		}
	}
	m.lastIssues = issues
	return nil
}

// Issues returns the findings from the most recently completed Pass,
// for callers that need the detail behind Suspect() (e.g. the CLI's
// machine-parseable verification report, spec.md §7: "{chain_suspect:
// bool, issues: [...]}").
func (m *Monitor) Issues() []Issue {
	return m.lastIssues
}

// verifyLinkContinuity checks that each segment's sequence numbers are
// dense and strictly increasing and that every stored link_digest
// recomputes correctly from its event_hash and prev_digest (spec.md
// §4.G.1).
func (m *Monitor) verifyLinkContinuity(seg SealedSegment) []Issue {
	var issues []Issue
	expected := seg.Header.NLo
	for _, link := range seg.Links {
		if link.N != expected {
			issues = append(issues, Issue{
				SegmentID:     seg.Path,
				SequenceRange: [2]uint64{seg.Header.NLo, link.N},
				Kind:          IssueOutOfOrder,
				Severity:      SeverityCritical,
				DetectedAt:    time.Now().UTC(),
				Evidence:      fmt.Sprintf("expected n=%d, found n=%d", expected, link.N),
			})
		}
		want := chain.LinkDigest(link.N, link.EventHash, link.PrevDigest)
		if want != link.LinkDigest {
			issues = append(issues, Issue{
				SegmentID:     seg.Path,
				SequenceRange: [2]uint64{seg.Header.NLo, link.N},
				Kind:          IssueDigestMismatch,
				Severity:      SeverityCritical,
				DetectedAt:    time.Now().UTC(),
				Evidence:      fmt.Sprintf("link %d: stored link_digest does not recompute from event_hash/prev_digest", link.N),
			})
		}
		expected = link.N + 1
	}
	return issues
}

// verifyMerkleConsistency recomputes the segment's Merkle root from its
// stored link digests and checks the trailer signature against the
// recorded key id (spec.md §4.G.2).
func (m *Monitor) verifyMerkleConsistency(seg SealedSegment) []Issue {
	if len(seg.Links) == 0 {
		return nil
	}
	digests := make([][32]byte, len(seg.Links))
	for i, l := range seg.Links {
		digests[i] = l.LinkDigest
	}
	seqRange := [2]uint64{seg.Header.NLo, seg.Header.NLo + uint64(len(seg.Links)) - 1}

	root := merkle.RootOf(digests)
	if root != seg.MerkleRoot {
		return []Issue{{
			SegmentID:     seg.Path,
			SequenceRange: seqRange,
			Kind:          IssueRootMismatch,
			Severity:      SeverityCritical,
			DetectedAt:    time.Now().UTC(),
			Evidence:      "recomputed merkle root does not match stored root",
		}}
	}
	if err := m.keyring.VerifySeal(seg.Header.KeyID, chain.EncodeHeaderForVerification(seg.Header), seg.MerkleRoot, seg.Signature); err != nil {
		return []Issue{{
			SegmentID:     seg.Path,
			SequenceRange: seqRange,
			Kind:          IssueSignatureInvalid,
			Severity:      SeverityCritical,
			DetectedAt:    time.Now().UTC(),
			Evidence:      err.Error(),
		}}
	}
	return nil
}

// verifyBoundary checks that seg's first link carries the prior
// segment's tail as its prev_digest (spec.md §4.G.4).
func (m *Monitor) verifyBoundary(seg SealedSegment, prevTail [32]byte) []Issue {
	first := seg.Links[0]
	if first.PrevDigest != prevTail {
		return []Issue{{
			SegmentID:     seg.Path,
			SequenceRange: [2]uint64{seg.Header.NLo, seg.Header.NLo},
			Kind:          IssueBoundaryMismatch,
			Severity:      SeverityCritical,
			DetectedAt:    time.Now().UTC(),
			Evidence:      "segment's first prev_digest does not equal the prior segment's last link_digest",
		}}
	}
	return nil
}

// verifyHeadFreshness checks that the newest live head attestation is
// younger than cfg.HeadStaleAfter and names the current live chain tip
// (spec.md §4.G.3).
func (m *Monitor) verifyHeadFreshness() []Issue {
	if m.head == nil || m.cfg.HeadStaleAfter <= 0 {
		return nil
	}
	att, observedAt, ok := m.head.LastAttestation()
	if !ok {
		return nil // no attestation has been made yet; nothing to judge stale
	}

	n, prevDigest := m.head.CurrentHead()
	age := time.Since(observedAt)

	var issues []Issue
	if age >= m.cfg.HeadStaleAfter {
		issues = append(issues, Issue{
			Kind:       IssueStaleHead,
			Severity:   SeverityCritical,
			DetectedAt: time.Now().UTC(),
			Evidence:   fmt.Sprintf("last head attestation is %s old, exceeding the %s staleness threshold", age, m.cfg.HeadStaleAfter),
		})
	}
	if att.N != n || att.PrevDigest != prevDigest {
		issues = append(issues, Issue{
			Kind:       IssueStaleHead,
			Severity:   SeverityCritical,
			DetectedAt: time.Now().UTC(),
			Evidence:   "live head attestation n/prev_digest no longer match the live chain tip",
		})
	}
	return issues
}

func (m *Monitor) record(ctx context.Context, issue Issue) {
	if m.metrics != nil {
		m.metrics.MonitorIssue(ctx, string(issue.Severity))
	}
	sev := audit.Info
	switch issue.Severity {
	case SeverityWarning:
		sev = audit.Low
	case SeverityError:
		sev = audit.Medium
	case SeverityCritical:
		sev = audit.High
	}

	e, err := audit.NewEvent(audit.Security, audit.IntegrityIssueDetected).
		Severity(sev).
		Actor(audit.SystemActor("audit_monitor")).
		Target(audit.NewTarget("segment", issue.SegmentID)).
		Outcome(audit.Failure(string(issue.Kind))).
		Attribute("kind", string(issue.Kind)).
		Attribute("sequence_range", fmt.Sprintf("%d-%d", issue.SequenceRange[0], issue.SequenceRange[1])).
		Attribute("evidence", issue.Evidence).
		Build()
	if err != nil {
		m.log.Error().Err(err).Msg("monitor: failed to build integrity issue event")
		return
	}
	if _, err := m.recorder.Record(ctx, e); err != nil {
		m.log.Error().Err(err).Msg("monitor: failed to record integrity issue")
	}
}

package chain

import (
	"context"
	"sync"
	"time"

	"github.com/matgreaves/run"
	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

// Attestor periodically signs a live head attestation over the
// sequencer's current tip (spec.md §4.F: "on a heartbeat, signs
// {timestamp ‖ n ‖ prev_digest} as a live head attestation so
// verifiers can detect silent truncation") and remembers the most
// recent one so internal/monitor can judge its freshness.
type Attestor struct {
	seq      *Sequencer
	keyring  *signer.Keyring
	interval time.Duration
	log      zerolog.Logger

	mu         sync.Mutex
	last       signer.HeadAttestation
	observedAt time.Time
	have       bool
}

func NewAttestor(seq *Sequencer, keyring *signer.Keyring, interval time.Duration, log zerolog.Logger) *Attestor {
	return &Attestor{seq: seq, keyring: keyring, interval: interval, log: log}
}

// CurrentHead delegates to the underlying sequencer, satisfying
// internal/monitor.HeadSource alongside LastAttestation.
func (a *Attestor) CurrentHead() (uint64, [32]byte) {
	return a.seq.CurrentHead()
}

// LastAttestation returns the most recently produced head attestation
// and the local time it was produced, or ok=false if none has been
// made yet.
func (a *Attestor) LastAttestation() (signer.HeadAttestation, time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last, a.observedAt, a.have
}

// Beat signs and records one attestation of the current chain tip.
func (a *Attestor) Beat() error {
	n, prevDigest := a.seq.CurrentHead()
	att, err := a.keyring.AttestHead(n, prevDigest)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.last = att
	a.observedAt = time.Now()
	a.have = true
	a.mu.Unlock()
	a.log.Debug().Uint64("n", n).Msg("chain: head attestation signed")
	return nil
}

// Runner returns a run.Runner heartbeating Beat on a.interval, in the
// matgreaves-rig lifecycle Func/Sequence style.
func (a *Attestor) Runner() run.Runner {
	return run.Func(func(ctx context.Context) error {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := a.Beat(); err != nil {
					a.log.Error().Err(err).Msg("chain: head attestation failed")
				}
			}
		}
	})
}

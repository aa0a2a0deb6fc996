// Package batch implements the audit pipeline's batch collector
// (spec.md §4.C): it groups sequenced links into batches bounded by
// max_events, max_bytes, or max_age — whichever fires first — for
// fan-out to live consumers (the exporter, the alert engine). Batching
// never delays sequencing or chaining; the collector only observes
// already-appended links.
//
// The size/age-threshold check is grounded on the batch-closing idiom
// in other_examples' certen-validator batch collector
// (ShouldCloseOnCadenceBatch: age-or-size, whichever comes first), and
// the history/cursor mechanism mirrors matgreaves-rig's EventLog.Since
// plus its notify-channel wakeup used elsewhere in this repository
// (internal/capture).
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

// Item is a single sequenced link handed to the collector by the
// sequencer (internal/chain) as it is appended.
type Item struct {
	N     uint64
	Event audit.Event
}

// Batch is a closed, immutable run of items identified by its
// (FirstN, LastN) range (spec.md §4.C).
type Batch struct {
	FirstN uint64
	LastN  uint64
	Items  []Item
}

// Config bounds a batch's lifetime.
type Config struct {
	MaxEvents int
	MaxBytes  int
	MaxAge    time.Duration
}

// Collector accumulates Items into Batches and retains a bounded
// history of closed batches so consumers can replay from a cursor after
// a restart (at-most-one delivery per consumer per batch).
type Collector struct {
	mu           sync.Mutex
	cfg          Config
	log          zerolog.Logger
	pending      []Item
	pendingBytes int
	openedAt     time.Time
	history      []Batch
	historyCap   int
	notify       chan struct{}
}

// New constructs a Collector. historyCap bounds how many closed batches
// are retained for cursor-based replay; older batches are evicted.
func New(cfg Config, log zerolog.Logger, historyCap int) *Collector {
	if historyCap <= 0 {
		historyCap = 256
	}
	return &Collector{
		cfg:        cfg,
		log:        log,
		historyCap: historyCap,
		notify:     make(chan struct{}),
	}
}

// Add appends a sequenced item to the pending batch, closing it first
// if the item would push it past a configured bound.
func (c *Collector) Add(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) > 0 && c.exceedsLocked(item) {
		c.closeLocked()
	}
	if len(c.pending) == 0 {
		c.openedAt = time.Now()
	}
	c.pending = append(c.pending, item)
	c.pendingBytes += len(item.Event.CanonicalBytes())

	if c.exceedsAfterAddLocked() {
		c.closeLocked()
	}
}

func (c *Collector) exceedsLocked(next Item) bool {
	if c.cfg.MaxEvents > 0 && len(c.pending) >= c.cfg.MaxEvents {
		return true
	}
	if c.cfg.MaxBytes > 0 && c.pendingBytes+len(next.Event.CanonicalBytes()) > c.cfg.MaxBytes {
		return true
	}
	if c.cfg.MaxAge > 0 && !c.openedAt.IsZero() && time.Since(c.openedAt) >= c.cfg.MaxAge {
		return true
	}
	return false
}

func (c *Collector) exceedsAfterAddLocked() bool {
	if c.cfg.MaxEvents > 0 && len(c.pending) >= c.cfg.MaxEvents {
		return true
	}
	if c.cfg.MaxBytes > 0 && c.pendingBytes >= c.cfg.MaxBytes {
		return true
	}
	return false
}

// closeLocked finalizes the pending run into a Batch and wakes waiters.
// Caller must hold c.mu.
func (c *Collector) closeLocked() {
	if len(c.pending) == 0 {
		return
	}
	b := Batch{
		FirstN: c.pending[0].N,
		LastN:  c.pending[len(c.pending)-1].N,
		Items:  c.pending,
	}
	c.history = append(c.history, b)
	if len(c.history) > c.historyCap {
		c.history = c.history[len(c.history)-c.historyCap:]
	}
	c.pending = nil
	c.pendingBytes = 0
	c.openedAt = time.Time{}

	c.log.Debug().Uint64("first_n", b.FirstN).Uint64("last_n", b.LastN).
		Int("count", len(b.Items)).Msg("batch closed")

	close(c.notify)
	c.notify = make(chan struct{})
}

// Flush force-closes the current pending batch regardless of whether a
// threshold has fired — for use at shutdown so no accumulated items are
// stranded. Run enforces max_age itself, without calling Flush.
func (c *Collector) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Run periodically checks the open batch's age and flushes it once
// max_age elapses, even with no further Add calls. It returns when ctx
// is cancelled.
func (c *Collector) Run(ctx context.Context) {
	if c.cfg.MaxAge <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(c.cfg.MaxAge / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if len(c.pending) > 0 && time.Since(c.openedAt) >= c.cfg.MaxAge {
				c.closeLocked()
			}
			c.mu.Unlock()
		}
	}
}

// Since returns all closed batches whose LastN is greater than cursor,
// in order — the replay path for a consumer recovering after restart.
func (c *Collector) Since(cursor uint64) []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Batch, 0, len(c.history))
	for _, b := range c.history {
		if b.LastN > cursor {
			out = append(out, b)
		}
	}
	return out
}

// Next blocks until a batch beyond cursor is available or ctx is
// cancelled, returning the earliest such batch — the live-delivery path
// for a running consumer.
func (c *Collector) Next(ctx context.Context, cursor uint64) (Batch, bool) {
	for {
		c.mu.Lock()
		for _, b := range c.history {
			if b.LastN > cursor {
				c.mu.Unlock()
				return b, true
			}
		}
		notify := c.notify
		c.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return Batch{}, false
		}
	}
}

// Package capture implements the audit pipeline's ingestion front-end
// (spec.md §4.B): a bounded multi-producer single-consumer queue with an
// explicit overflow policy, enrichment of incoming events, and drop
// accounting: every drop is counted, logged, and passed to an optional
// DropHook. The package itself builds no drop meta-event and does not
// rate-limit the hook.
//
// The queue is a mutex-guarded ring buffer with a "new data" signal
// channel that is closed and replaced on every publish — the same idiom
// matgreaves-rig's EventLog uses for its notify channel
// (server/eventlog.go), generalized from a broadcast log to a
// single-consumer work queue.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/auditconfig"
	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
	"github.com/wolfe-services/tachikoma-audit/internal/metrics"
)

// DropHook is called synchronously, outside the queue's lock, whenever an
// event is dropped. It is expected to emit a rate-limited meta-event
// through a path that bypasses the bounded queue (spec.md §9: breaking
// the monitor/log cycle applies equally here — a drop meta-event must
// never itself be subject to drop accounting).
type DropHook func(reason string, droppedSoFar uint64)

// Queue is a bounded MPSC queue of built audit.Events awaiting
// sequencing. Producers call Enqueue (directly, or via audit.Recorder
// through the Queue itself); exactly one consumer drains it with Next.
type Queue struct {
	mu            sync.Mutex
	items         []audit.Event
	capacity      int
	policy        auditconfig.OverflowPolicy
	blockDeadline time.Duration
	closed        bool
	dropped       uint64
	notify        chan struct{} // closed and replaced whenever state changes

	metrics *metrics.Recorder
	log     zerolog.Logger
	onDrop  DropHook
}

// New constructs a Queue from cfg. metrics and onDrop may be nil.
func New(cfg auditconfig.Config, log zerolog.Logger, m *metrics.Recorder, onDrop DropHook) *Queue {
	return &Queue{
		capacity:      cfg.QueueCapacity,
		policy:        cfg.QueueOverflowPolicy,
		blockDeadline: cfg.QueueBlockDeadline,
		notify:        make(chan struct{}),
		metrics:       m,
		log:           log,
		onDrop:        onDrop,
	}
}

// wake closes and replaces the notify channel. Caller must hold q.mu.
func (q *Queue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// Record implements audit.Recorder, enriching e before enqueueing it.
// The sequence number in Result is not assigned here — that becomes
// meaningful once internal/chain's sequencer consumes the event; this
// Result only reports whether the event entered the queue.
func (q *Queue) Record(ctx context.Context, e audit.Event) (audit.Result, error) {
	e = enrich(ctx, e)
	return q.Enqueue(ctx, e)
}

// Enqueue pushes e onto the queue, applying the configured overflow
// policy if the queue is full. block_up_to waits up to the queue's
// configured deadline (or until ctx is cancelled) for room to free up.
func (q *Queue) Enqueue(ctx context.Context, e audit.Event) (audit.Result, error) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return audit.Result{Reason: "queue_closed"}, nil
	}

	if len(q.items) < q.capacity {
		q.items = append(q.items, e)
		q.wake()
		q.mu.Unlock()
		q.recordCaptured(ctx)
		return audit.Result{Accepted: true}, nil
	}

	switch q.policy {
	case auditconfig.DropOldest:
		q.items = append(q.items[1:], e)
		q.wake()
		q.mu.Unlock()
		q.recordDropped(ctx, "drop_oldest")
		return audit.Result{Dropped: true, Reason: "drop_oldest"}, nil

	case auditconfig.BlockUpTo:
		notify := q.notify
		q.mu.Unlock()
		if ok := q.waitForRoom(ctx, notify); !ok {
			q.recordDropped(ctx, "block_up_to_deadline")
			return audit.Result{}, auditerr.ErrQueueFull
		}
		return q.Enqueue(ctx, e)

	default: // DropNewest
		q.mu.Unlock()
		q.recordDropped(ctx, "drop_newest")
		return audit.Result{Dropped: true, Reason: "drop_newest"}, nil
	}
}

// waitForRoom blocks until the queue has free capacity, ctx is done, or
// the configured block deadline elapses, returning false in the latter
// two cases. notify is the channel observed at the moment the caller's
// queue was found full; it fires on the next state change.
func (q *Queue) waitForRoom(ctx context.Context, notify chan struct{}) bool {
	deadline := time.NewTimer(q.blockDeadline)
	defer deadline.Stop()

	for {
		select {
		case <-notify:
			q.mu.Lock()
			full := len(q.items) >= q.capacity && !q.closed
			notify = q.notify
			q.mu.Unlock()
			if !full {
				return true
			}
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Next blocks until an event is available, the queue is closed, or ctx
// is cancelled, then removes and returns the oldest queued event. It is
// intended to be called by exactly one consumer (the sequencer).
func (q *Queue) Next(ctx context.Context) (audit.Event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			if q.metrics != nil {
				q.metrics.QueueDepth(ctx, -1)
			}
			return e, true
		}
		if q.closed {
			q.mu.Unlock()
			return audit.Event{}, false
		}
		notify := q.notify
		q.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return audit.Event{}, false
		}
	}
}

// Close marks the queue closed, waking any blocked Next or Enqueue
// callers. Closed queues no longer accept new items.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.wake()
	q.mu.Unlock()
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) recordCaptured(ctx context.Context) {
	if q.metrics != nil {
		q.metrics.EventCaptured(ctx)
		q.metrics.QueueDepth(ctx, 1)
	}
}

func (q *Queue) recordDropped(ctx context.Context, reason string) {
	q.mu.Lock()
	q.dropped++
	n := q.dropped
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.EventDropped(ctx, reason)
	}
	q.log.Warn().Str("reason", reason).Uint64("dropped_total", n).Msg("audit event dropped")
	if q.onDrop != nil {
		q.onDrop(reason, n)
	}
}

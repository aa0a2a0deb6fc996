package capture

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/auditconfig"
)

func testEvent(t *testing.T, correlationID string) audit.Event {
	t.Helper()
	e, err := audit.NewEvent(audit.System, audit.SystemStartup).
		Actor(audit.SystemActor("test")).
		CorrelationID(correlationID).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestQueue_EnqueueNextRoundTrip(t *testing.T) {
	is := is.New(t)
	cfg := auditconfig.Default()
	cfg.QueueCapacity = 4
	q := New(cfg, noopLogger(), nil, nil)

	res, err := q.Enqueue(context.Background(), testEvent(t, "c1"))
	is.NoErr(err)
	is.True(res.Accepted)

	e, ok := q.Next(context.Background())
	is.True(ok)
	is.Equal(e.CorrelationID, "c1")
	is.Equal(q.Len(), 0)
}

func TestQueue_DropNewestWhenFull(t *testing.T) {
	is := is.New(t)
	cfg := auditconfig.Default()
	cfg.QueueCapacity = 1
	cfg.QueueOverflowPolicy = auditconfig.DropNewest
	q := New(cfg, noopLogger(), nil, nil)

	_, err := q.Enqueue(context.Background(), testEvent(t, "first"))
	is.NoErr(err)

	res, err := q.Enqueue(context.Background(), testEvent(t, "second"))
	is.NoErr(err)
	is.True(res.Dropped)

	e, ok := q.Next(context.Background())
	is.True(ok)
	is.Equal(e.CorrelationID, "first")
}

func TestQueue_DropOldestWhenFull(t *testing.T) {
	is := is.New(t)
	cfg := auditconfig.Default()
	cfg.QueueCapacity = 1
	cfg.QueueOverflowPolicy = auditconfig.DropOldest
	q := New(cfg, noopLogger(), nil, nil)

	_, err := q.Enqueue(context.Background(), testEvent(t, "first"))
	is.NoErr(err)
	res, err := q.Enqueue(context.Background(), testEvent(t, "second"))
	is.NoErr(err)
	is.True(res.Dropped)

	e, ok := q.Next(context.Background())
	is.True(ok)
	is.Equal(e.CorrelationID, "second")
}

func TestQueue_BlockUpToTimesOut(t *testing.T) {
	cfg := auditconfig.Default()
	cfg.QueueCapacity = 1
	cfg.QueueOverflowPolicy = auditconfig.BlockUpTo
	cfg.QueueBlockDeadline = 20 * time.Millisecond
	q := New(cfg, noopLogger(), nil, nil)

	if _, err := q.Enqueue(context.Background(), testEvent(t, "first")); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err := q.Enqueue(context.Background(), testEvent(t, "second"))
	if err == nil {
		t.Fatal("expected queue_full error once deadline elapses")
	}
	if elapsed := time.Since(start); elapsed < cfg.QueueBlockDeadline {
		t.Fatalf("returned before deadline elapsed: %v", elapsed)
	}
}

func TestQueue_BlockUpToUnblocksWhenRoomFrees(t *testing.T) {
	is := is.New(t)
	cfg := auditconfig.Default()
	cfg.QueueCapacity = 1
	cfg.QueueOverflowPolicy = auditconfig.BlockUpTo
	cfg.QueueBlockDeadline = time.Second
	q := New(cfg, noopLogger(), nil, nil)

	_, err := q.Enqueue(context.Background(), testEvent(t, "first"))
	is.NoErr(err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Next(context.Background())
	}()

	res, err := q.Enqueue(context.Background(), testEvent(t, "second"))
	is.NoErr(err)
	is.True(res.Accepted)
}

func TestQueue_CloseUnblocksNext(t *testing.T) {
	cfg := auditconfig.Default()
	q := New(cfg, noopLogger(), nil, nil)

	done := make(chan bool)
	go func() {
		_, ok := q.Next(context.Background())
		done <- ok
	}()

	time.Sleep(5 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Next to report no event after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Close")
	}
}

func TestQueue_DropHookFires(t *testing.T) {
	cfg := auditconfig.Default()
	cfg.QueueCapacity = 1
	cfg.QueueOverflowPolicy = auditconfig.DropNewest
	var gotReason string
	q := New(cfg, noopLogger(), nil, func(reason string, n uint64) {
		gotReason = reason
	})

	if _, err := q.Enqueue(context.Background(), testEvent(t, "a")); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(context.Background(), testEvent(t, "b")); err != nil {
		t.Fatal(err)
	}
	if gotReason != "drop_newest" {
		t.Fatalf("expected drop hook to fire with drop_newest, got %q", gotReason)
	}
}

package batch

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

func mustEvent(t *testing.T) audit.Event {
	t.Helper()
	e, err := audit.NewEvent(audit.System, audit.SystemStartup).Build()
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestCollector_ClosesOnMaxEvents(t *testing.T) {
	c := New(Config{MaxEvents: 2}, zerolog.New(io.Discard), 16)

	c.Add(Item{N: 1, Event: mustEvent(t)})
	c.Add(Item{N: 2, Event: mustEvent(t)})
	c.Add(Item{N: 3, Event: mustEvent(t)})

	batches := c.Since(0)
	if len(batches) != 1 {
		t.Fatalf("expected 1 closed batch, got %d", len(batches))
	}
	if batches[0].FirstN != 1 || batches[0].LastN != 2 {
		t.Fatalf("unexpected batch range: %+v", batches[0])
	}
}

func TestCollector_FlushClosesPartialBatch(t *testing.T) {
	c := New(Config{MaxEvents: 100}, zerolog.New(io.Discard), 16)
	c.Add(Item{N: 1, Event: mustEvent(t)})
	c.Flush()

	batches := c.Since(0)
	if len(batches) != 1 || batches[0].LastN != 1 {
		t.Fatalf("expected flush to close a single-item batch, got %+v", batches)
	}
}

func TestCollector_SinceRespectsCursor(t *testing.T) {
	c := New(Config{MaxEvents: 1}, zerolog.New(io.Discard), 16)
	c.Add(Item{N: 1, Event: mustEvent(t)})
	c.Add(Item{N: 2, Event: mustEvent(t)})

	batches := c.Since(1)
	if len(batches) != 1 || batches[0].FirstN != 2 {
		t.Fatalf("expected only the batch after cursor 1, got %+v", batches)
	}
}

func TestCollector_NextBlocksUntilBatchCloses(t *testing.T) {
	c := New(Config{MaxEvents: 1}, zerolog.New(io.Discard), 16)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan Batch)
	go func() {
		b, ok := c.Next(ctx, 0)
		if ok {
			done <- b
		}
	}()

	time.Sleep(10 * time.Millisecond)
	c.Add(Item{N: 1, Event: mustEvent(t)})

	select {
	case b := <-done:
		if b.FirstN != 1 {
			t.Fatalf("unexpected batch: %+v", b)
		}
	case <-ctx.Done():
		t.Fatal("Next did not unblock after a batch closed")
	}
}

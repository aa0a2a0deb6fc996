package audit

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Result is the outcome of a Record call (spec.md §6:
// "record(event) → {accepted(n) | rejected(reason) | dropped}").
type Result struct {
	Accepted bool
	Seq      uint64
	Dropped  bool
	Reason   string
}

// Recorder accepts built events into the capture front-end (internal/capture
// implements this over the sequencer, internal/chain). It is the single
// seam between the public audit package and the rest of the pipeline, kept
// small so producers and tests can supply fakes.
type Recorder interface {
	Record(ctx context.Context, e Event) (Result, error)
}

// Context is an explicitly-constructed audit context: the application
// root builds exactly one of these and either passes it to producers or
// installs it as the process default via SetDefault. This is the
// "explicitly-constructed audit context ... avoid hidden static mutable
// state beyond a single init-once pointer" design called for in spec.md
// §9 ("Global singletons").
type Context struct {
	recorder Recorder
}

// NewContext wraps a Recorder in an audit Context.
func NewContext(r Recorder) *Context {
	return &Context{recorder: r}
}

// Record builds and submits an event in one call — the synchronous
// convenience entry point (spec.md §6, §9 "Coroutine-style producers").
func (c *Context) Record(ctx context.Context, category Category, action Action, actor Actor) (Result, error) {
	e, err := NewEvent(category, action).
		Actor(actor).
		CorrelationID(correlationIDFrom(ctx)).
		Build()
	if err != nil {
		return Result{}, err
	}
	return c.recorder.Record(ctx, e)
}

// RecordEvent submits an already-built event, minting a correlation id
// from the ambient context if the event does not carry one.
func (c *Context) RecordEvent(ctx context.Context, e Event) (Result, error) {
	if e.CorrelationID == "" {
		e.CorrelationID = correlationIDFrom(ctx)
	}
	return c.recorder.Record(ctx, e)
}

var defaultContext atomic.Pointer[Context]

// SetDefault installs c as the process-wide default audit context. It is
// intended to be called exactly once, by the application root, at
// startup; later calls replace the pointer atomically (useful in tests)
// but are not meant for routine runtime reconfiguration.
func SetDefault(c *Context) {
	defaultContext.Store(c)
}

// Default returns the process-wide audit context installed by SetDefault,
// or nil if none has been installed. Producers that have no explicit
// Context threaded to them fall back to this ambient pointer rather than
// a package-level mutable singleton.
func Default() *Context {
	return defaultContext.Load()
}

// Record is a package-level convenience that records against the
// default Context. It returns an error if no default has been installed.
func Record(ctx context.Context, category Category, action Action, actor Actor) (Result, error) {
	c := Default()
	if c == nil {
		return Result{}, fmt.Errorf("audit: no default context installed; call audit.SetDefault first")
	}
	return c.Record(ctx, category, action, actor)
}

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation id to ctx for propagation to
// any event recorded against a derived context that does not set its own.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

func correlationIDFrom(ctx context.Context) string {
	return CorrelationIDFrom(ctx)
}

// CorrelationIDFrom extracts the correlation id attached by
// WithCorrelationID, or "" if ctx carries none. Exported so other
// packages (internal/capture's enrichment step in particular) can read
// the same ambient value producers set.
func CorrelationIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return v
	}
	return ""
}

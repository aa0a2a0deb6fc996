// Package alert implements real-time alerting over captured audit
// events (SPEC_FULL.md §11, supplementing original_source's
// tachikoma-audit-alerting crate): rules match on category and minimum
// severity, and matching events are dispatched to a notification
// handler without blocking the sequencer.
package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

// Rule matches an audit event against a category and severity
// threshold. An empty Category matches every category.
type Rule struct {
	Name        string
	Category    audit.Category
	MinSeverity audit.Severity
}

// Matches reports whether e satisfies r.
func (r Rule) Matches(e audit.Event) bool {
	if r.Category != "" && e.Category != r.Category {
		return false
	}
	return e.Severity.MeetsThreshold(r.MinSeverity)
}

// Alert is one rule firing against one event.
type Alert struct {
	Rule  Rule
	Event audit.Event
}

// Handler delivers a fired Alert to an external channel (webhook,
// email, pager). Implementations must not block indefinitely; the
// engine calls Notify synchronously per alert.
type Handler interface {
	Notify(ctx context.Context, a Alert) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, a Alert) error

func (f HandlerFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

// Engine evaluates every captured event against its current rule set
// (replaceable with SetRules) and
// dispatches matches to its handlers. A handler error is logged, never
// propagated — alert delivery failures must not affect the audit
// pipeline itself.
type Engine struct {
	mu       sync.RWMutex
	rules    []Rule
	handlers []Handler
	log      zerolog.Logger
}

// NewEngine builds an Engine with the given initial rules.
func NewEngine(rules []Rule, log zerolog.Logger) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...), log: log}
}

// AddHandler registers h to receive every future fired Alert.
func (e *Engine) AddHandler(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// SetRules replaces the engine's rule set.
func (e *Engine) SetRules(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append([]Rule(nil), rules...)
}

// Evaluate checks ev against every rule and dispatches a fired Alert to
// every registered handler for each match.
func (e *Engine) Evaluate(ctx context.Context, ev audit.Event) {
	e.mu.RLock()
	rules := e.rules
	handlers := e.handlers
	e.mu.RUnlock()

	for _, r := range rules {
		if !r.Matches(ev) {
			continue
		}
		a := Alert{Rule: r, Event: ev}
		for _, h := range handlers {
			if err := h.Notify(ctx, a); err != nil {
				e.log.Error().Err(err).Str("rule", r.Name).Msg("alert: notify failed")
			}
		}
	}
}

// Tap returns a function suitable for installing as a post-record hook:
// call it with every successfully recorded event to drive alerting.
func (e *Engine) Tap() func(ctx context.Context, ev audit.Event) {
	return e.Evaluate
}

// ErrNoHandlers is returned by RequireHandler when an engine has none
// registered, letting callers fail startup loudly instead of silently
// alerting into the void.
var ErrNoHandlers = fmt.Errorf("alert: no handlers registered")

// RequireHandler returns ErrNoHandlers if e has no handlers.
func (e *Engine) RequireHandler() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.handlers) == 0 {
		return ErrNoHandlers
	}
	return nil
}

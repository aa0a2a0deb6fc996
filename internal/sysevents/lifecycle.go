// Package sysevents captures system-level events the application
// itself generates rather than its users: process lifecycle,
// configuration changes, panics, and periodic resource snapshots, plus
// a HealthStatus value type (SPEC_FULL.md §11, supplementing original_source's
// tachikoma-audit-system-events crate).
package sysevents

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

// LifecycleAudit records process startup/shutdown as category=system
// events against a Recorder.
type LifecycleAudit struct {
	recorder  audit.Recorder
	component string
}

// NewLifecycleAudit binds a LifecycleAudit to component's name, used as
// the actor identity on every event it records.
func NewLifecycleAudit(recorder audit.Recorder, component string) *LifecycleAudit {
	return &LifecycleAudit{recorder: recorder, component: component}
}

// Startup records process startup, with version as an attribute so a
// fleet's audit log carries its own deploy history.
func (l *LifecycleAudit) Startup(ctx context.Context, version string) error {
	return l.record(ctx, audit.SystemStartup, map[string]string{"version": version})
}

// Shutdown records a clean process shutdown.
func (l *LifecycleAudit) Shutdown(ctx context.Context, reason string) error {
	return l.record(ctx, audit.SystemShutdown, map[string]string{"reason": reason})
}

func (l *LifecycleAudit) record(ctx context.Context, action audit.Action, attrs map[string]string) error {
	b := audit.NewEvent(audit.System, action).Actor(audit.SystemActor(l.component))
	for k, v := range attrs {
		b = b.Attribute(k, v)
	}
	e, err := b.Build()
	if err != nil {
		return fmt.Errorf("sysevents: build event: %w", err)
	}
	_, err = l.recorder.Record(ctx, e)
	return err
}

// RecordPanic records a recovered panic as a critical category=system
// event with its stack trace attached. It does not re-panic itself;
// InstallPanicHook does that after calling it, so the process still
// crashes.
func (l *LifecycleAudit) RecordPanic(ctx context.Context, r any) {
	e, err := audit.NewEvent(audit.System, audit.CustomAction("process_panicked")).
		Actor(audit.SystemActor(l.component)).
		Severity(audit.Critical).
		Attribute("panic", fmt.Sprint(r)).
		Attribute("stack", string(debug.Stack())).
		Build()
	if err == nil {
		l.recorder.Record(ctx, e)
	}
}

// InstallPanicHook returns a deferred function that records a recovered
// panic via RecordPanic and then re-panics. Callers defer it at the top
// of main: `defer sysevents.InstallPanicHook(ctx, la)()`.
func InstallPanicHook(ctx context.Context, l *LifecycleAudit) func() {
	return func() {
		if r := recover(); r != nil {
			l.RecordPanic(ctx, r)
			panic(r)
		}
	}
}

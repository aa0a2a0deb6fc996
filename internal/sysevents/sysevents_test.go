package sysevents

import (
	"context"
	"testing"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

type fakeRecorder struct {
	events []audit.Event
}

func (f *fakeRecorder) Record(_ context.Context, e audit.Event) (audit.Result, error) {
	f.events = append(f.events, e)
	return audit.Result{Accepted: true}, nil
}

func TestLifecycleAudit_Startup(t *testing.T) {
	r := &fakeRecorder{}
	la := NewLifecycleAudit(r, "auditd")

	if err := la.Startup(context.Background(), "1.2.3"); err != nil {
		t.Fatal(err)
	}
	if len(r.events) != 1 {
		t.Fatalf("got %d events, want 1", len(r.events))
	}
	if r.events[0].Action != audit.SystemStartup {
		t.Fatalf("action = %q, want %q", r.events[0].Action, audit.SystemStartup)
	}
	if r.events[0].Attributes["version"] != "1.2.3" {
		t.Fatalf("version attribute = %q, want %q", r.events[0].Attributes["version"], "1.2.3")
	}
}

func TestLifecycleAudit_RecordPanicDoesNotPanic(t *testing.T) {
	r := &fakeRecorder{}
	la := NewLifecycleAudit(r, "auditd")

	la.RecordPanic(context.Background(), "boom")

	if len(r.events) != 1 {
		t.Fatalf("got %d events, want 1", len(r.events))
	}
	if r.events[0].Severity != audit.Critical {
		t.Fatalf("severity = %v, want Critical", r.events[0].Severity)
	}
}

func TestInstallPanicHook_RePanics(t *testing.T) {
	r := &fakeRecorder{}
	la := NewLifecycleAudit(r, "auditd")

	defer func() {
		if recover() == nil {
			t.Fatal("expected re-panic to propagate")
		}
		if len(r.events) != 1 {
			t.Fatalf("got %d events, want 1", len(r.events))
		}
	}()

	func() {
		defer InstallPanicHook(context.Background(), la)()
		panic("test panic")
	}()
}

func TestConfigWatcher_Changed(t *testing.T) {
	r := &fakeRecorder{}
	w := NewConfigWatcher(r, "auditd")

	if err := w.Changed(context.Background(), "log_level", "info", "debug"); err != nil {
		t.Fatal(err)
	}
	if len(r.events) != 1 {
		t.Fatalf("got %d events, want 1", len(r.events))
	}
	if r.events[0].Target.ResourceID != "log_level" {
		t.Fatalf("target resource id = %q, want %q", r.events[0].Target.ResourceID, "log_level")
	}
}

func TestResourceRecorder_Sample(t *testing.T) {
	r := &fakeRecorder{}
	rr := NewResourceRecorder(r, "auditd", 0)

	rr.sample(context.Background())

	if len(r.events) != 1 {
		t.Fatalf("got %d events, want 1", len(r.events))
	}
}

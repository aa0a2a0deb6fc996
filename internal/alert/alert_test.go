package alert

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

func testEvent(t *testing.T, category audit.Category, sev audit.Severity) audit.Event {
	t.Helper()
	e, err := audit.NewEvent(category, audit.Login).
		Actor(audit.UserActor("u1")).
		Severity(sev).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return e
}

type recordingHandler struct {
	alerts []Alert
}

func (r *recordingHandler) Notify(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

func TestEngine_FiresOnMatchingRule(t *testing.T) {
	eng := NewEngine([]Rule{
		{Name: "critical-security", Category: audit.Security, MinSeverity: audit.Critical},
	}, zerolog.Nop())
	h := &recordingHandler{}
	eng.AddHandler(h)

	eng.Evaluate(context.Background(), testEvent(t, audit.Security, audit.Critical))

	if len(h.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(h.alerts))
	}
}

func TestEngine_SkipsBelowThreshold(t *testing.T) {
	eng := NewEngine([]Rule{
		{Name: "critical-security", Category: audit.Security, MinSeverity: audit.Critical},
	}, zerolog.Nop())
	h := &recordingHandler{}
	eng.AddHandler(h)

	eng.Evaluate(context.Background(), testEvent(t, audit.Security, audit.Low))

	if len(h.alerts) != 0 {
		t.Fatalf("got %d alerts, want 0", len(h.alerts))
	}
}

func TestEngine_CategoryMismatchDoesNotFire(t *testing.T) {
	eng := NewEngine([]Rule{
		{Name: "security-only", Category: audit.Security, MinSeverity: audit.Info},
	}, zerolog.Nop())
	h := &recordingHandler{}
	eng.AddHandler(h)

	eng.Evaluate(context.Background(), testEvent(t, audit.Authentication, audit.Critical))

	if len(h.alerts) != 0 {
		t.Fatalf("got %d alerts, want 0", len(h.alerts))
	}
}

func TestEngine_RequireHandler(t *testing.T) {
	eng := NewEngine(nil, zerolog.Nop())
	if err := eng.RequireHandler(); err != ErrNoHandlers {
		t.Fatalf("got %v, want ErrNoHandlers", err)
	}
	eng.AddHandler(&recordingHandler{})
	if err := eng.RequireHandler(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

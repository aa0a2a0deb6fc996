package compliance

import (
	"testing"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

func mustEvent(t *testing.T, category audit.Category, action audit.Action, userID string) audit.Event {
	t.Helper()
	e, err := audit.NewEvent(category, action).Actor(audit.UserActor(userID)).Build()
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestReportGenerator_CountsPerControl(t *testing.T) {
	lib := NewControlLibrary(DefaultControls())
	gen := NewReportGenerator(lib)

	events := []audit.Event{
		mustEvent(t, audit.Authentication, audit.Login, "u1"),
		mustEvent(t, audit.Authentication, audit.LoginFailed, "u2"),
		mustEvent(t, audit.UserManagement, audit.UserCreated, "u1"),
	}

	report, err := gen.Generate(ReportConfig{Framework: "SOC2"}, events)
	if err != nil {
		t.Fatal(err)
	}

	var accessCount, lifecycleCount int
	for _, c := range report.Coverage {
		switch c.Control.ID {
		case "access-control":
			accessCount = c.EventCount
		case "user-lifecycle":
			lifecycleCount = c.EventCount
		}
	}
	if accessCount != 2 {
		t.Fatalf("access-control count = %d, want 2", accessCount)
	}
	if lifecycleCount != 1 {
		t.Fatalf("user-lifecycle count = %d, want 1", lifecycleCount)
	}
}

func TestReportGenerator_GapsReportsZeroCoverage(t *testing.T) {
	lib := NewControlLibrary(DefaultControls())
	gen := NewReportGenerator(lib)

	report, err := gen.Generate(ReportConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	gaps := report.Gaps()
	if len(gaps) != len(DefaultControls()) {
		t.Fatalf("got %d gaps, want %d", len(gaps), len(DefaultControls()))
	}
}

func TestReportGenerator_UnknownFrameworkErrors(t *testing.T) {
	lib := NewControlLibrary(DefaultControls())
	gen := NewReportGenerator(lib)

	_, err := gen.Generate(ReportConfig{Framework: "NIST-CSF"}, nil)
	if err != ErrNoControls {
		t.Fatalf("got %v, want ErrNoControls", err)
	}
}

func TestDsarHandler_Access(t *testing.T) {
	h := NewDsarHandler()
	events := []audit.Event{
		mustEvent(t, audit.Authentication, audit.Login, "u1"),
		mustEvent(t, audit.Authentication, audit.Logout, "u1"),
	}

	resp, err := h.Access("u1", events)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(resp.Events))
	}

	portable := h.Portable(resp)
	if len(portable.Events) != 2 {
		t.Fatalf("got %d portable events, want 2", len(portable.Events))
	}
	if portable.UserID != "u1" {
		t.Fatalf("UserID = %q, want %q", portable.UserID, "u1")
	}
}

func TestDsarHandler_Access_RejectsMismatchedEvent(t *testing.T) {
	h := NewDsarHandler()
	events := []audit.Event{
		mustEvent(t, audit.Authentication, audit.Login, "someone-else"),
	}

	_, err := h.Access("u1", events)
	if err != ErrUserMismatch {
		t.Fatalf("got %v, want ErrUserMismatch", err)
	}
}

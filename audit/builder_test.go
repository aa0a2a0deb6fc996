package audit

import (
	"testing"

	"github.com/matryer/is"
)

func TestBuilder_DefaultsSeverityFromAction(t *testing.T) {
	is := is.New(t)

	e, err := NewEvent(Authentication, LoginFailed).Build()
	is.NoErr(err)
	is.Equal(e.Severity, High)
	is.Equal(e.Outcome.Kind, OutcomeSuccess)
	is.Equal(e.Actor.Kind, ActorUnknown)
}

func TestBuilder_CustomActionRequiresExplicitSeverity(t *testing.T) {
	_, err := NewEvent(Security, CustomAction("rogue_probe")).Build()
	if err == nil {
		t.Fatal("expected error for custom action without explicit severity")
	}
}

func TestBuilder_CustomActionWithSeverityBuilds(t *testing.T) {
	is := is.New(t)

	e, err := NewEvent(Security, CustomAction("rogue_probe")).Severity(Critical).Build()
	is.NoErr(err)
	is.Equal(e.Severity, Critical)
	is.True(e.Action.IsCustom())
}

func TestBuilder_RejectsInvalidCategory(t *testing.T) {
	_, err := NewEvent(Category("bogus"), Login).Build()
	if err == nil {
		t.Fatal("expected error for invalid category")
	}
}

func TestBuilder_RequiresAction(t *testing.T) {
	_, err := NewEvent(Authentication, "").Build()
	if err == nil {
		t.Fatal("expected error for missing action")
	}
}

func TestBuilder_SeverityOverrideWins(t *testing.T) {
	is := is.New(t)

	e, err := NewEvent(Authentication, Login).Severity(Critical).Build()
	is.NoErr(err)
	is.Equal(e.Severity, Critical)
}

func TestBuilder_AttributesAndTarget(t *testing.T) {
	is := is.New(t)

	e, err := NewEvent(FileSystem, FileDeleted).
		Actor(UserActor("u_1")).
		Target(NewTarget("file", "/etc/passwd")).
		Attribute("reason", "cleanup").
		Outcome(Failure("permission_denied")).
		CorrelationID("corr-1").
		Build()
	is.NoErr(err)
	is.Equal(e.Target.ResourceID, "/etc/passwd")
	is.Equal(e.Attributes["reason"], "cleanup")
	is.Equal(e.Outcome.Kind, OutcomeFailure)
	is.Equal(e.Outcome.Reason, "permission_denied")
	is.Equal(e.CorrelationID, "corr-1")
}

func TestBuilder_EachEventGetsAUniqueID(t *testing.T) {
	a, err := NewEvent(Mission, MissionStarted).Build()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewEvent(Mission, MissionStarted).Build()
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct event ids")
	}
}

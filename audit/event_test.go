package audit

import (
	"bytes"
	"testing"
)

func TestEvent_CanonicalBytesDeterministic(t *testing.T) {
	e, err := NewEvent(Authentication, Login).
		Actor(UserActor("u_42")).
		Attribute("ip", "10.0.0.1").
		Attribute("ua", "curl").
		Build()
	if err != nil {
		t.Fatal(err)
	}

	a := e.CanonicalBytes()
	b := e.CanonicalBytes()
	if !bytes.Equal(a, b) {
		t.Fatal("canonical encoding must be stable across calls on the same event")
	}
}

func TestEvent_CanonicalBytesIgnoreAttributeInsertionOrder(t *testing.T) {
	base := NewEvent(Authentication, Login).Actor(UserActor("u_42"))

	e1, err := NewEvent(Authentication, Login).
		Actor(UserActor("u_42")).
		Attribute("a", "1").
		Attribute("b", "2").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	e2, err := NewEvent(Authentication, Login).
		Actor(UserActor("u_42")).
		Attribute("b", "2").
		Attribute("a", "1").
		Build()
	if err != nil {
		t.Fatal(err)
	}

	// copy over the non-deterministic fields (id/timestamps) so only the
	// attribute ordering differs between the two canonical encodings.
	e2.ID = e1.ID
	e2.Timestamp = e1.Timestamp
	e2.ReceivedAt = e1.ReceivedAt

	if !bytes.Equal(e1.CanonicalBytes(), e2.CanonicalBytes()) {
		t.Fatal("canonical encoding must not depend on attribute insertion order")
	}
	_ = base
}

func TestEvent_CanonicalBytesDifferOnSeverity(t *testing.T) {
	e1, err := NewEvent(Authentication, Login).Build()
	if err != nil {
		t.Fatal(err)
	}
	e2 := e1
	e2.Severity = Critical

	if bytes.Equal(e1.CanonicalBytes(), e2.CanonicalBytes()) {
		t.Fatal("canonical encoding must reflect severity changes")
	}
}

func TestEventID_StringHasPrefix(t *testing.T) {
	id := NewEventID()
	if got := id.String(); len(got) < 4 || got[:4] != "aud_" {
		t.Fatalf("expected aud_ prefix, got %q", got)
	}
}

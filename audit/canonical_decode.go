package audit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// DecodeCanonicalEvent parses the bytes produced by Event.CanonicalBytes
// back into an Event. It is the read side of the canonical encoding
// (spec.md §4.B: "export of range [a,b] followed by re-import... yields
// a byte-identical canonical serialization"), used by the segment store
// reader to reconstruct events for export and integrity verification.
func DecodeCanonicalEvent(b []byte) (Event, error) {
	r := bytes.NewReader(b)
	var e Event

	if _, err := io.ReadFull(r, e.ID[:]); err != nil {
		return Event{}, fmt.Errorf("canonical event: id: %w", err)
	}

	ts, err := readInt64(r)
	if err != nil {
		return Event{}, fmt.Errorf("canonical event: timestamp: %w", err)
	}
	e.Timestamp = time.Unix(0, ts).UTC()

	recv, err := readInt64(r)
	if err != nil {
		return Event{}, fmt.Errorf("canonical event: received_at: %w", err)
	}
	e.ReceivedAt = time.Unix(0, recv).UTC()

	cat, err := readString(r)
	if err != nil {
		return Event{}, fmt.Errorf("canonical event: category: %w", err)
	}
	e.Category = Category(cat)

	act, err := readString(r)
	if err != nil {
		return Event{}, fmt.Errorf("canonical event: action: %w", err)
	}
	e.Action = Action(act)

	sevByte, err := r.ReadByte()
	if err != nil {
		return Event{}, fmt.Errorf("canonical event: severity: %w", err)
	}
	e.Severity = Severity(sevByte)

	if e.Actor, err = readActor(r); err != nil {
		return Event{}, fmt.Errorf("canonical event: actor: %w", err)
	}
	if e.Target, err = readTarget(r); err != nil {
		return Event{}, fmt.Errorf("canonical event: target: %w", err)
	}
	if e.Outcome, err = readOutcome(r); err != nil {
		return Event{}, fmt.Errorf("canonical event: outcome: %w", err)
	}
	if e.Attributes, err = readStringMap(r); err != nil {
		return Event{}, fmt.Errorf("canonical event: attributes: %w", err)
	}
	if e.CorrelationID, err = readString(r); err != nil {
		return Event{}, fmt.Errorf("canonical event: correlation_id: %w", err)
	}

	return e, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func readActor(r *bytes.Reader) (Actor, error) {
	var a Actor
	var err error
	var kind string
	if kind, err = readString(r); err != nil {
		return Actor{}, err
	}
	a.Kind = ActorKind(kind)
	if a.UserID, err = readString(r); err != nil {
		return Actor{}, err
	}
	if a.Username, err = readString(r); err != nil {
		return Actor{}, err
	}
	if a.SessionID, err = readString(r); err != nil {
		return Actor{}, err
	}
	if a.Component, err = readString(r); err != nil {
		return Actor{}, err
	}
	pid, err := readInt64(r)
	if err != nil {
		return Actor{}, err
	}
	a.ProcessID = int(pid)
	if a.ClientID, err = readString(r); err != nil {
		return Actor{}, err
	}
	if a.ClientName, err = readString(r); err != nil {
		return Actor{}, err
	}
	if a.BackendName, err = readString(r); err != nil {
		return Actor{}, err
	}
	if a.Model, err = readString(r); err != nil {
		return Actor{}, err
	}
	return a, nil
}

func readTarget(r *bytes.Reader) (Target, error) {
	var t Target
	var err error
	if t.ResourceType, err = readString(r); err != nil {
		return Target{}, err
	}
	if t.ResourceID, err = readString(r); err != nil {
		return Target{}, err
	}
	if t.Attributes, err = readStringMap(r); err != nil {
		return Target{}, err
	}
	return t, nil
}

func readOutcome(r *bytes.Reader) (Outcome, error) {
	var o Outcome
	var err error
	var kind string
	if kind, err = readString(r); err != nil {
		return Outcome{}, err
	}
	o.Kind = OutcomeKind(kind)
	if o.Reason, err = readString(r); err != nil {
		return Outcome{}, err
	}
	return o, nil
}

func readStringMap(r *bytes.Reader) (map[string]string, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	m := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

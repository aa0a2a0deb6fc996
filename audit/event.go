package audit

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// EventID is a unique, opaque identifier for an audit event: 128 bits of
// random data, displayed with an "aud_" prefix (mirrors the teacher's
// "rig_"-style prefixed identifiers in internal/spec).
type EventID [16]byte

// NewEventID draws a fresh random EventID.
func NewEventID() EventID {
	var id EventID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// broken; there is nothing this package can recover to.
		panic(fmt.Sprintf("audit: failed to read random event id: %v", err))
	}
	return id
}

func (id EventID) String() string {
	return "aud_" + hex.EncodeToString(id[:])
}

// MarshalJSON encodes the id as its string form.
func (id EventID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// Event is a single immutable audit record. Event values are produced
// only by EventBuilder.Build; once built, nothing in this package
// mutates an Event's fields.
type Event struct {
	ID            EventID           `json:"event_id"`
	Timestamp     time.Time         `json:"timestamp"`
	ReceivedAt    time.Time         `json:"received_at"`
	Category      Category          `json:"category"`
	Action        Action            `json:"action"`
	Severity      Severity          `json:"severity"`
	Actor         Actor             `json:"actor"`
	Target        Target            `json:"target,omitempty"`
	Outcome       Outcome           `json:"outcome"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// CanonicalBytes returns the deterministic byte encoding of e used to
// compute event_hash (spec.md §4.A: "event_hash(n) = H(canonical_bytes
// (event_n))"). The encoding is fixed-field-order and length-prefixed
// throughout so that two implementations encoding the same logical
// event always produce identical bytes — a property encoding/json's
// map-key ordering does not guarantee.
func (e Event) CanonicalBytes() []byte {
	var buf bytes.Buffer
	buf.Write(e.ID[:])
	writeInt64(&buf, e.Timestamp.UTC().UnixNano())
	writeInt64(&buf, e.ReceivedAt.UTC().UnixNano())
	writeString(&buf, string(e.Category))
	writeString(&buf, string(e.Action))
	buf.WriteByte(byte(e.Severity))
	writeActor(&buf, e.Actor)
	writeTarget(&buf, e.Target)
	writeOutcome(&buf, e.Outcome)
	writeAttributes(&buf, e.Attributes)
	writeString(&buf, e.CorrelationID)
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeActor(buf *bytes.Buffer, a Actor) {
	writeString(buf, string(a.Kind))
	writeString(buf, a.UserID)
	writeString(buf, a.Username)
	writeString(buf, a.SessionID)
	writeString(buf, a.Component)
	writeInt64(buf, int64(a.ProcessID))
	writeString(buf, a.ClientID)
	writeString(buf, a.ClientName)
	writeString(buf, a.BackendName)
	writeString(buf, a.Model)
}

func writeTarget(buf *bytes.Buffer, t Target) {
	writeString(buf, t.ResourceType)
	writeString(buf, t.ResourceID)
	writeStringMap(buf, t.Attributes)
}

func writeOutcome(buf *bytes.Buffer, o Outcome) {
	writeString(buf, string(o.Kind))
	writeString(buf, o.Reason)
}

func writeAttributes(buf *bytes.Buffer, m map[string]string) {
	writeStringMap(buf, m)
}

// writeStringMap sorts keys before writing so canonical encoding never
// depends on Go's randomized map iteration order.
func writeStringMap(buf *bytes.Buffer, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		writeString(buf, k)
		writeString(buf, m[k])
	}
}

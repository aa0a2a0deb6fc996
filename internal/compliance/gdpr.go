package compliance

import (
	"fmt"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

// AccessResponse is the result of a GDPR Article 15 access request: the
// full set of events in which the data subject appears as either actor
// or target, identified by userID.
type AccessResponse struct {
	UserID string
	Events []audit.Event
}

// PortableData is the Article 20 data-portability export of an
// AccessResponse: the same events, reduced to the fields a data subject
// is entitled to receive about themselves, in a stable machine-readable
// shape independent of the internal Event representation.
type PortableData struct {
	UserID string          `json:"user_id"`
	Events []PortableEvent `json:"events"`
}

// PortableEvent is one event's user-facing portable projection.
type PortableEvent struct {
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
}

// ErrUserMismatch is returned when DsarHandler is given events that do
// not actually reference the requested user — a caller bug, since the
// selection is expected to have already been filtered to userID.
var ErrUserMismatch = fmt.Errorf("compliance: event does not reference the requested user")

// DsarHandler answers GDPR data-subject access requests (DSARs) against
// an already-selected slice of events (e.g. from
// internal/retrieve.Retriever, filtered upstream by actor/target user
// id — this package has no event source of its own).
type DsarHandler struct{}

// NewDsarHandler builds a DsarHandler.
func NewDsarHandler() *DsarHandler {
	return &DsarHandler{}
}

// Access builds an AccessResponse for userID from events, which must
// already be restricted to ones referencing userID as actor or target.
func (h *DsarHandler) Access(userID string, events []audit.Event) (AccessResponse, error) {
	for _, e := range events {
		if e.Actor.UserID != userID && e.Target.ResourceID != userID {
			return AccessResponse{}, ErrUserMismatch
		}
	}
	return AccessResponse{UserID: userID, Events: events}, nil
}

// Portable converts an AccessResponse into its Article 20 portable
// form.
func (h *DsarHandler) Portable(resp AccessResponse) PortableData {
	out := PortableData{UserID: resp.UserID, Events: make([]PortableEvent, 0, len(resp.Events))}
	for _, e := range resp.Events {
		out.Events = append(out.Events, PortableEvent{
			EventID:   e.ID.String(),
			Timestamp: e.Timestamp.Format("2006-01-02T15:04:05.000000000Z07:00"),
			Category:  string(e.Category),
			Action:    string(e.Action),
			Outcome:   string(e.Outcome.Kind),
		})
	}
	return out
}

package audit

import (
	"fmt"
	"time"
)

// EventBuilder constructs an Event. Category and Action are required;
// every other field defaults (spec.md §4.A: "Constructing an event is a
// pure builder: category and action are required; all other fields
// default"). Severity defaults from Action.DefaultSeverity unless the
// action is custom, in which case an explicit severity is required.
type EventBuilder struct {
	category      Category
	action        Action
	severity      *Severity
	actor         Actor
	target        Target
	outcome       Outcome
	attributes    map[string]string
	correlationID string
	timestamp     time.Time
}

// NewEvent starts a builder for the given category and action.
func NewEvent(category Category, action Action) *EventBuilder {
	return &EventBuilder{
		category: category,
		action:   action,
		actor:    UnknownActor(),
		outcome:  Success(),
	}
}

// Severity overrides the action's default severity.
func (b *EventBuilder) Severity(s Severity) *EventBuilder {
	b.severity = &s
	return b
}

// Actor sets the initiating actor.
func (b *EventBuilder) Actor(a Actor) *EventBuilder {
	b.actor = a
	return b
}

// Target sets the resource the action was taken against.
func (b *EventBuilder) Target(t Target) *EventBuilder {
	b.target = t
	return b
}

// Outcome sets the result of the action. Defaults to Success.
func (b *EventBuilder) Outcome(o Outcome) *EventBuilder {
	b.outcome = o
	return b
}

// Attribute sets a single free-form attribute, creating the map on
// first use.
func (b *EventBuilder) Attribute(key, value string) *EventBuilder {
	if b.attributes == nil {
		b.attributes = make(map[string]string)
	}
	b.attributes[key] = value
	return b
}

// CorrelationID links this event to other events sharing a request,
// session, or workflow.
func (b *EventBuilder) CorrelationID(id string) *EventBuilder {
	b.correlationID = id
	return b
}

// At overrides the event's logical timestamp; defaults to time.Now()
// at Build time if unset. Intended for replaying historical events, not
// routine production use.
func (b *EventBuilder) At(t time.Time) *EventBuilder {
	b.timestamp = t
	return b
}

// Build validates the builder's state and produces an Event. The
// returned event has no ID for n or receive time assigned yet beyond
// its own EventID and Timestamp/ReceivedAt — sequencing (n, event_hash,
// link_digest) is the sequencer's job (internal/chain), not the
// builder's (spec.md §4.A vs §4.D).
func (b *EventBuilder) Build() (Event, error) {
	if !b.category.Valid() {
		return Event{}, fmt.Errorf("audit: invalid category %q", b.category)
	}
	if b.action == "" {
		return Event{}, fmt.Errorf("audit: action is required")
	}
	severity := b.severity
	if severity == nil {
		if b.action.IsCustom() {
			return Event{}, fmt.Errorf("audit: custom action %q requires an explicit severity", b.action)
		}
		d := b.action.DefaultSeverity()
		severity = &d
	}
	if !b.actor.Valid() {
		return Event{}, fmt.Errorf("audit: invalid actor kind %q", b.actor.Kind)
	}
	if !b.outcome.Valid() {
		return Event{}, fmt.Errorf("audit: invalid outcome kind %q", b.outcome.Kind)
	}

	ts := b.timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	now := time.Now().UTC()

	return Event{
		ID:            NewEventID(),
		Timestamp:     ts,
		ReceivedAt:    now,
		Category:      b.category,
		Action:        b.action,
		Severity:      *severity,
		Actor:         b.actor,
		Target:        b.target,
		Outcome:       b.outcome,
		Attributes:    b.attributes,
		CorrelationID: b.correlationID,
	}, nil
}

package capture

import (
	"context"
	"time"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

// enrich adds receive time and a correlation id from the ambient context
// when the event did not set one explicitly (spec.md: "Enrichment adds:
// receive time, process identity, correlation id propagated from an
// ambient context if present, and a monotonic sequence hint"). Process
// identity already lives on audit.SystemActor/audit.Actor; the monotonic
// sequence hint is assigned once the event reaches the sequencer
// (internal/chain), not here — enrichment only fills in what the
// capture front-end itself is positioned to know.
func enrich(ctx context.Context, e audit.Event) audit.Event {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	if e.CorrelationID == "" {
		e.CorrelationID = audit.CorrelationIDFrom(ctx)
	}
	return e
}

package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/wolfe-services/tachikoma-audit/internal/batch"
)

var csvHeader = []string{
	"n", "event_id", "timestamp", "received_at", "category", "action",
	"severity", "actor_kind", "actor_identifier", "resource_type",
	"resource_id", "outcome", "outcome_reason", "correlation_id",
}

// csvWriter emits RFC 4180 CSV via encoding/csv (spec.md §4.H CSV;
// the format's own "reserved-character escaping" requirement is
// exactly encoding/csv's quoting contract, so no pack library improves
// on it).
type csvWriter struct {
	cw       *csv.Writer
	counting *countingWriter
	wrote    bool
}

func newCSVWriter(w *bufio.Writer, c *countingWriter) *csvWriter {
	return &csvWriter{cw: csv.NewWriter(w), counting: c}
}

func (c *csvWriter) WriteItem(item batch.Item) error {
	if !c.wrote {
		if err := c.cw.Write(csvHeader); err != nil {
			return err
		}
		c.wrote = true
	}
	e := item.Event
	row := []string{
		fmt.Sprintf("%d", item.N),
		e.ID.String(),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.ReceivedAt.UTC().Format(time.RFC3339Nano),
		string(e.Category),
		string(e.Action),
		e.Severity.String(),
		string(e.Actor.Kind),
		e.Actor.Identifier(),
		e.Target.ResourceType,
		e.Target.ResourceID,
		string(e.Outcome.Kind),
		e.Outcome.Reason,
		e.CorrelationID,
	}
	return c.cw.Write(row)
}

func (c *csvWriter) Close() error {
	c.cw.Flush()
	return c.cw.Error()
}

func (c *csvWriter) countingWriter() *countingWriter { return c.counting }

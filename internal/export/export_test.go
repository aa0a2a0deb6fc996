package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/batch"
)

type sliceSource struct {
	items []batch.Item
	i     int
}

func (s *sliceSource) Next(ctx context.Context) (batch.Item, bool, error) {
	if s.i >= len(s.items) {
		return batch.Item{}, false, nil
	}
	item := s.items[s.i]
	s.i++
	return item, true, nil
}

func mustEvent(t *testing.T) audit.Event {
	t.Helper()
	e, err := audit.NewEvent(audit.Authentication, audit.Login).
		Actor(audit.UserActor("u1")).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRun_JSONLines(t *testing.T) {
	items := []batch.Item{{N: 1, Event: mustEvent(t)}, {N: 2, Event: mustEvent(t)}}
	var buf bytes.Buffer
	res, err := Run(context.Background(), &buf, &sliceSource{items: items}, Config{Format: FormatJSONLines})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExportedEvents != 2 || res.LastN != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["n"].(float64) != 1 {
		t.Fatalf("unexpected n: %v", rec["n"])
	}
}

func TestRun_RespectsFromN(t *testing.T) {
	items := []batch.Item{{N: 1, Event: mustEvent(t)}, {N: 2, Event: mustEvent(t)}, {N: 3, Event: mustEvent(t)}}
	var buf bytes.Buffer
	res, err := Run(context.Background(), &buf, &sliceSource{items: items}, Config{Format: FormatJSONLines, FromN: 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExportedEvents != 2 {
		t.Fatalf("expected 2 exported events from n=2, got %d", res.ExportedEvents)
	}
}

func TestRun_CSVHasHeaderAndRows(t *testing.T) {
	items := []batch.Item{{N: 1, Event: mustEvent(t)}}
	var buf bytes.Buffer
	if _, err := Run(context.Background(), &buf, &sliceSource{items: items}, Config{Format: FormatCSV}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "n,event_id,timestamp") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
}

func TestRun_CEFIncludesSeverityAndClassID(t *testing.T) {
	items := []batch.Item{{N: 1, Event: mustEvent(t)}}
	var buf bytes.Buffer
	if _, err := Run(context.Background(), &buf, &sliceSource{items: items}, Config{Format: FormatCEF}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "CEF:0|WolfeServices|Tachikoma|1.0|100|login|4|") {
		t.Fatalf("unexpected CEF line: %s", out)
	}
}

func TestRun_JSONPrettyEmptyProducesEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Run(context.Background(), &buf, &sliceSource{}, Config{Format: FormatJSONPretty}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("expected empty array, got %q", buf.String())
	}
}

func TestRun_ProgressCallbackFires(t *testing.T) {
	items := []batch.Item{{N: 1, Event: mustEvent(t)}, {N: 2, Event: mustEvent(t)}}
	var calls []Progress
	var buf bytes.Buffer
	_, err := Run(context.Background(), &buf, &sliceSource{items: items}, Config{
		Format:        FormatJSONLines,
		ProgressEvery: 1,
		OnProgress:    func(p Progress) { calls = append(calls, p) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) < 2 {
		t.Fatalf("expected at least 2 progress callbacks, got %d", len(calls))
	}
}

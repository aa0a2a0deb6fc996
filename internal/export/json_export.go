package export

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/wolfe-services/tachikoma-audit/internal/batch"
)

// exportRecord is the canonical JSON shape for an exported item: the
// event plus its sequence number, so downstream consumers can
// deduplicate on restart (spec.md §4.H: "outputs include n so
// downstream can deduplicate").
type exportRecord struct {
	N     uint64     `json:"n"`
	Event interface{} `json:"event"`
}

func newExportRecord(item batch.Item) exportRecord {
	return exportRecord{N: item.N, Event: item.Event}
}

// jsonLinesWriter emits one JSON object per line (spec.md §4.H JSONL).
type jsonLinesWriter struct {
	w        *bufio.Writer
	counting *countingWriter
}

func (j *jsonLinesWriter) WriteItem(item batch.Item) error {
	b, err := json.Marshal(newExportRecord(item))
	if err != nil {
		return fmt.Errorf("marshal jsonl record: %w", err)
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	return j.w.WriteByte('\n')
}

func (j *jsonLinesWriter) Close() error {
	return j.w.Flush()
}

func (j *jsonLinesWriter) countingWriter() *countingWriter { return j.counting }

// jsonPrettyWriter emits a single indented JSON array (spec.md §4.H
// "pretty JSON array").
type jsonPrettyWriter struct {
	w        *bufio.Writer
	counting *countingWriter
	wrote    bool
}

func newJSONPrettyWriter(w *bufio.Writer, c *countingWriter) *jsonPrettyWriter {
	return &jsonPrettyWriter{w: w, counting: c}
}

func (j *jsonPrettyWriter) WriteItem(item batch.Item) error {
	if !j.wrote {
		if _, err := j.w.WriteString("[\n"); err != nil {
			return err
		}
		j.wrote = true
	} else {
		if _, err := j.w.WriteString(",\n"); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(newExportRecord(item), "  ", "  ")
	if err != nil {
		return fmt.Errorf("marshal json record: %w", err)
	}
	if _, err := j.w.WriteString("  "); err != nil {
		return err
	}
	_, err = j.w.Write(b)
	return err
}

func (j *jsonPrettyWriter) Close() error {
	if !j.wrote {
		if _, err := j.w.WriteString("[]\n"); err != nil {
			return err
		}
	} else if _, err := j.w.WriteString("\n]\n"); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *jsonPrettyWriter) countingWriter() *countingWriter { return j.counting }

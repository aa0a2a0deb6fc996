// Package export streams sealed audit events to an external sink in
// one of several formats (spec.md §4.H), grounded on
// original_source/tachikoma-audit-export/src/lib.rs's ExportWriter
// trait and per-format module split, expressed here as a Go interface
// and one file per format in the teacher's service.Type registry
// style (server/service's per-type registration).
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wolfe-services/tachikoma-audit/internal/batch"
)

// Format selects the wire shape an exporter writes (spec.md §4.H:
// "Streams sealed ranges in one of {JSONL, pretty JSON array, CSV,
// CEF, LEEF}").
type Format string

const (
	FormatJSONLines  Format = "jsonl"
	FormatJSONPretty Format = "json_pretty"
	FormatCSV        Format = "csv"
	FormatCEF        Format = "cef"
	FormatLEEF       Format = "leef"
)

// Progress is delivered to Config.OnProgress at a bounded cadence
// (spec.md §4.H: "Progress callback receives {exported_events,
// current_n, bytes_written} at a bounded cadence").
type Progress struct {
	ExportedEvents uint64
	CurrentN       uint64
	BytesWritten   uint64
}

// ProgressFunc receives periodic Progress updates during an export.
type ProgressFunc func(Progress)

// Config configures one export run.
type Config struct {
	Format Format
	// FromN is the starting n (inclusive); 0 means "from the beginning"
	// (spec.md §4.H: "Restartable: accepts a starting n and resumes").
	FromN uint64
	// ProgressEvery bounds how often OnProgress fires, in exported
	// events; 0 disables periodic callbacks (a final one still fires).
	ProgressEvery int
	OnProgress    ProgressFunc
}

// Source yields items in ascending n order starting at or after
// fromN, one at a time, until exhausted. Implemented by a segment
// store reader; kept minimal here so export has no import-cycle
// dependency on storage internals.
type Source interface {
	Next(ctx context.Context) (batch.Item, bool, error)
}

// Writer is the per-format contract (spec.md §4.H, generalizing
// original_source's ExportWriter trait). WriteItem emits one event;
// Close flushes and finalizes the stream's framing (e.g. the closing
// "]" of a pretty JSON array).
type Writer interface {
	WriteItem(item batch.Item) error
	Close() error
}

// NewWriter constructs the Writer for format, wrapping sink in a
// counting, buffered writer so export never buffers the full output in
// memory (spec.md §4.H: "Back-pressured: writes to an abstract sink;
// the sink's slow progress slows the producer side of the export").
func NewWriter(format Format, sink io.Writer) (Writer, error) {
	cw := newCountingWriter(sink)
	bw := bufio.NewWriter(cw)
	switch format {
	case FormatJSONLines:
		return &jsonLinesWriter{w: bw, counting: cw}, nil
	case FormatJSONPretty:
		return newJSONPrettyWriter(bw, cw), nil
	case FormatCSV:
		return newCSVWriter(bw, cw), nil
	case FormatCEF:
		return &cefWriter{w: bw, counting: cw}, nil
	case FormatLEEF:
		return &leefWriter{w: bw, counting: cw}, nil
	default:
		return nil, fmt.Errorf("export: unknown format %q", format)
	}
}

// Result summarizes a completed export run.
type Result struct {
	ExportedEvents uint64
	LastN          uint64
	BytesWritten   uint64
	Duration       time.Duration
}

// Run streams every item from source with n >= cfg.FromN into a writer
// of cfg.Format over sink, invoking cfg.OnProgress along the way.
func Run(ctx context.Context, sink io.Writer, source Source, cfg Config) (Result, error) {
	start := time.Now()
	w, err := NewWriter(cfg.Format, sink)
	if err != nil {
		return Result{}, err
	}

	cw, ok := unwrapCounting(w)
	var exported uint64
	var lastN uint64
	sinceProgress := 0

	for {
		item, ok2, err := source.Next(ctx)
		if err != nil {
			_ = w.Close()
			return Result{}, fmt.Errorf("export: read item: %w", err)
		}
		if !ok2 {
			break
		}
		if item.N < cfg.FromN {
			continue
		}
		if err := w.WriteItem(item); err != nil {
			_ = w.Close()
			return Result{}, fmt.Errorf("export: write item n=%d: %w", item.N, err)
		}
		exported++
		lastN = item.N
		sinceProgress++

		if cfg.OnProgress != nil && cfg.ProgressEvery > 0 && sinceProgress >= cfg.ProgressEvery {
			cfg.OnProgress(Progress{ExportedEvents: exported, CurrentN: lastN, BytesWritten: bytesWrittenOf(cw, ok)})
			sinceProgress = 0
		}
	}

	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("export: close writer: %w", err)
	}
	if cfg.OnProgress != nil {
		cfg.OnProgress(Progress{ExportedEvents: exported, CurrentN: lastN, BytesWritten: bytesWrittenOf(cw, ok)})
	}

	return Result{ExportedEvents: exported, LastN: lastN, BytesWritten: bytesWrittenOf(cw, ok), Duration: time.Since(start)}, nil
}

// countingWriter tracks total bytes written through it, exposed to
// Progress without the writer implementations needing to track it
// themselves.
type countingWriter struct {
	w io.Writer
	n uint64
}

func newCountingWriter(w io.Writer) *countingWriter {
	return &countingWriter{w: w}
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

// unwrapCounting extracts the countingWriter embedded in a concrete
// Writer implementation, if any, for byte-count progress reporting.
func unwrapCounting(w Writer) (*countingWriter, bool) {
	type hasCounting interface{ countingWriter() *countingWriter }
	if hc, ok := w.(hasCounting); ok {
		return hc.countingWriter(), true
	}
	return nil, false
}

func bytesWrittenOf(cw *countingWriter, ok bool) uint64 {
	if !ok || cw == nil {
		return 0
	}
	return cw.n
}

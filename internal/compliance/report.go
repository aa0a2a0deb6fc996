package compliance

import (
	"fmt"
	"time"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

// ReportConfig parameters one compliance report run.
type ReportConfig struct {
	Framework string // empty reports on every control in the library
	Start     time.Time
	End       time.Time
}

// ControlCoverage is one control's evidence count within a report
// window.
type ControlCoverage struct {
	Control    Control
	EventCount int
}

// Report is a full compliance report: one ControlCoverage per control,
// plus the window it covers.
type Report struct {
	Config   ReportConfig
	Coverage []ControlCoverage
}

// Gaps returns every control in the report with zero observed events —
// the coverage holes an auditor needs to see first.
func (r Report) Gaps() []Control {
	var out []Control
	for _, c := range r.Coverage {
		if c.EventCount == 0 {
			out = append(out, c.Control)
		}
	}
	return out
}

// ReportGenerator builds a Report by scanning a slice of events against
// a ControlLibrary. It operates on an already-materialized event slice
// (e.g. the result of internal/retrieve.Retriever.Query or
// internal/store.Cursor drained to completion) rather than owning its
// own event source, keeping this package independent of how events were
// read back.
type ReportGenerator struct {
	library *ControlLibrary
}

// NewReportGenerator binds a ReportGenerator to library.
func NewReportGenerator(library *ControlLibrary) *ReportGenerator {
	return &ReportGenerator{library: library}
}

// ErrNoControls is returned by Generate when the configured framework
// matches no control in the library.
var ErrNoControls = fmt.Errorf("compliance: no controls match the requested framework")

// Generate builds a Report for cfg against events, which must already
// be restricted to [cfg.Start, cfg.End] by the caller.
func (g *ReportGenerator) Generate(cfg ReportConfig, events []audit.Event) (Report, error) {
	controls := g.library.Controls()
	if cfg.Framework != "" {
		controls = g.library.ByFramework(cfg.Framework)
	}
	if len(controls) == 0 {
		return Report{}, ErrNoControls
	}

	counts := make(map[string]int, len(controls))
	for _, e := range events {
		for _, c := range controls {
			if c.matches(e) {
				counts[c.ID]++
			}
		}
	}

	coverage := make([]ControlCoverage, 0, len(controls))
	for _, c := range controls {
		coverage = append(coverage, ControlCoverage{Control: c, EventCount: counts[c.ID]})
	}

	return Report{Config: cfg, Coverage: coverage}, nil
}

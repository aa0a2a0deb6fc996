package export

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/batch"
)

// cefSeverity is the fixed severity → CEF severity (0-10) mapping
// (spec.md §4.H: "severity → CEF severity 0-10 (info=2, low=4,
// medium=6, high=8, critical=10)").
func cefSeverity(s audit.Severity) int {
	switch s {
	case audit.Info:
		return 2
	case audit.Low:
		return 4
	case audit.Medium:
		return 6
	case audit.High:
		return 8
	case audit.Critical:
		return 10
	default:
		return 2
	}
}

// categoryClassID is the fixed category → CEF device event class id
// mapping (spec.md §4.H: "category → CEF device event class id").
func categoryClassID(c audit.Category) string {
	switch c {
	case audit.Authentication:
		return "100"
	case audit.Authorization:
		return "110"
	case audit.UserManagement:
		return "120"
	case audit.Mission:
		return "200"
	case audit.Forge:
		return "210"
	case audit.Configuration:
		return "300"
	case audit.FileSystem:
		return "400"
	case audit.APICall:
		return "500"
	case audit.System:
		return "600"
	case audit.Security:
		return "700"
	case audit.DataTransfer:
		return "800"
	default:
		return "000"
	}
}

const (
	cefVendor  = "WolfeServices"
	cefProduct = "Tachikoma"
	cefVersion = "1.0"
)

// escapeCEFHeaderField escapes the reserved characters in CEF's pipe-
// delimited header fields (spec.md §4.H: "structured attributes → key
// = value extensions with reserved-character escaping").
func escapeCEFHeaderField(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `|`, `\|`)
	return r.Replace(s)
}

func escapeCEFExtensionValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `=`, `\=`, "\n", `\n`)
	return r.Replace(s)
}

func cefExtensions(item batch.Item) string {
	e := item.Event
	fields := map[string]string{
		"n":              fmt.Sprintf("%d", item.N),
		"eventId":        e.ID.String(),
		"rt":             fmt.Sprintf("%d", e.Timestamp.UTC().UnixMilli()),
		"outcome":        string(e.Outcome.Kind),
		"suser":          e.Actor.Identifier(),
		"cs1Label":       "correlationId",
		"cs1":            e.CorrelationID,
	}
	if e.Outcome.Reason != "" {
		fields["reason"] = e.Outcome.Reason
	}
	if !e.Target.IsZero() {
		fields["duser"] = e.Target.ResourceID
		fields["destinationServiceName"] = e.Target.ResourceType
	}
	for k, v := range e.Attributes {
		fields["cn1Label."+k] = v
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if fields[k] == "" {
			continue
		}
		parts = append(parts, k+"="+escapeCEFExtensionValue(fields[k]))
	}
	return strings.Join(parts, " ")
}

// cefWriter emits ArcSight Common Event Format lines (spec.md §4.H
// CEF).
type cefWriter struct {
	w        *bufio.Writer
	counting *countingWriter
}

func (c *cefWriter) WriteItem(item batch.Item) error {
	e := item.Event
	line := fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s\n",
		cefVendor, cefProduct, cefVersion,
		categoryClassID(e.Category),
		escapeCEFHeaderField(string(e.Action)),
		cefSeverity(e.Severity),
		cefExtensions(item),
	)
	_, err := c.w.WriteString(line)
	return err
}

func (c *cefWriter) Close() error {
	return c.w.Flush()
}

func (c *cefWriter) countingWriter() *countingWriter { return c.counting }

// leefWriter emits IBM Log Event Extended Format lines (spec.md §4.H
// LEEF), reusing the same fixed severity/category/action mappings CEF
// uses.
type leefWriter struct {
	w        *bufio.Writer
	counting *countingWriter
}

func (l *leefWriter) WriteItem(item batch.Item) error {
	e := item.Event
	line := fmt.Sprintf("LEEF:2.0|%s|%s|%s|%s|cat=%s\tsev=%d\t%s\n",
		cefVendor, cefProduct, cefVersion,
		escapeCEFHeaderField(string(e.Action)),
		categoryClassID(e.Category),
		cefSeverity(e.Severity),
		strings.ReplaceAll(cefExtensions(item), " ", "\t"),
	)
	_, err := l.w.WriteString(line)
	return err
}

func (l *leefWriter) Close() error {
	return l.w.Flush()
}

func (l *leefWriter) countingWriter() *countingWriter { return l.counting }

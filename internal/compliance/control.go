// Package compliance generates control-coverage reports over the audit
// log and implements GDPR data-subject access requests (SPEC_FULL.md
// §11, supplementing original_source's tachikoma-audit-compliance
// crate's compliance/control_library/report_generator/gdpr/
// dsar_handler modules).
package compliance

import "github.com/wolfe-services/tachikoma-audit/audit"

// Control is one named compliance requirement mapped to the audit
// categories and actions whose presence satisfies it (e.g. SOC2 CC6.1:
// "logical access is restricted" maps to authentication/authorization
// events).
type Control struct {
	ID          string
	Framework   string // e.g. "SOC2", "ISO27001", "GDPR"
	Description string
	Categories  []audit.Category
}

// ControlLibrary is a named set of Controls a deployment reports
// against.
type ControlLibrary struct {
	controls []Control
}

// NewControlLibrary builds a library from controls.
func NewControlLibrary(controls []Control) *ControlLibrary {
	return &ControlLibrary{controls: append([]Control(nil), controls...)}
}

// DefaultControls is a small starter set grounding the common
// authentication/authorization/security controls most frameworks share.
func DefaultControls() []Control {
	return []Control{
		{
			ID:          "access-control",
			Framework:   "SOC2",
			Description: "Logical access to the system is authenticated and authorized",
			Categories:  []audit.Category{audit.Authentication, audit.Authorization},
		},
		{
			ID:          "user-lifecycle",
			Framework:   "SOC2",
			Description: "User account creation, modification, and removal is logged",
			Categories:  []audit.Category{audit.UserManagement},
		},
		{
			ID:          "security-incident-logging",
			Framework:   "ISO27001",
			Description: "Security-relevant events are logged and retained",
			Categories:  []audit.Category{audit.Security},
		},
		{
			ID:          "config-change-tracking",
			Framework:   "SOC2",
			Description: "Configuration changes are logged",
			Categories:  []audit.Category{audit.Configuration},
		},
	}
}

// Controls returns the library's full control set.
func (l *ControlLibrary) Controls() []Control {
	return append([]Control(nil), l.controls...)
}

// ByFramework returns every control belonging to framework.
func (l *ControlLibrary) ByFramework(framework string) []Control {
	var out []Control
	for _, c := range l.controls {
		if c.Framework == framework {
			out = append(out, c)
		}
	}
	return out
}

// matches reports whether e's category is one of c's mapped categories.
func (c Control) matches(e audit.Event) bool {
	for _, cat := range c.Categories {
		if e.Category == cat {
			return true
		}
	}
	return false
}

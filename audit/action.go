package audit

import "strings"

// Action is a closed enumeration of audit verbs, plus a custom string
// variant for actions not otherwise named here. Custom actions must carry
// an explicit severity (see EventBuilder.Severity) since no default can
// be derived for them.
type Action string

const (
	// Authentication
	Login          Action = "login"
	Logout         Action = "logout"
	LoginFailed    Action = "login_failed"
	TokenRefresh   Action = "token_refresh"
	TokenRevoked   Action = "token_revoked"
	SessionExpired Action = "session_expired"

	// Authorization
	AccessGranted    Action = "access_granted"
	AccessDenied     Action = "access_denied"
	PermissionChange Action = "permission_changed"
	RoleAssigned     Action = "role_assigned"
	RoleRevoked      Action = "role_revoked"

	// User management
	UserCreated    Action = "user_created"
	UserUpdated    Action = "user_updated"
	UserDeleted    Action = "user_deleted"
	UserEnabled    Action = "user_enabled"
	UserDisabled   Action = "user_disabled"
	PasswordChange Action = "password_changed"
	PasswordReset  Action = "password_reset"

	// Mission
	MissionCreated   Action = "mission_created"
	MissionStarted   Action = "mission_started"
	MissionPaused    Action = "mission_paused"
	MissionResumed   Action = "mission_resumed"
	MissionCompleted Action = "mission_completed"
	MissionFailed    Action = "mission_failed"
	MissionAborted   Action = "mission_aborted"
	MissionRebooted  Action = "mission_rebooted"

	// Forge
	ForgeSessionCreated   Action = "forge_session_created"
	ForgeSessionCompleted Action = "forge_session_completed"
	ForgeDraftGenerated   Action = "forge_draft_generated"
	ForgeCritiqueReceived Action = "forge_critique_received"
	ForgeSynthesized      Action = "forge_synthesized"

	// Configuration
	ConfigCreated  Action = "config_created"
	ConfigUpdated  Action = "config_updated"
	ConfigDeleted  Action = "config_deleted"
	ConfigExported Action = "config_exported"
	ConfigImported Action = "config_imported"

	// File system
	FileCreated           Action = "file_created"
	FileRead              Action = "file_read"
	FileUpdated           Action = "file_updated"
	FileDeleted           Action = "file_deleted"
	FileMoved             Action = "file_moved"
	FilePermissionChanged Action = "file_permission_changed"

	// API calls
	APIRequestSent      Action = "api_request_sent"
	APIResponseReceived Action = "api_response_received"
	APIRateLimited      Action = "api_rate_limited"
	APIError            Action = "api_error"

	// System
	SystemStartup  Action = "system_startup"
	SystemShutdown Action = "system_shutdown"
	SystemError    Action = "system_error"
	BackupCreated  Action = "backup_created"
	BackupRestored Action = "backup_restored"

	// Security
	SuspiciousActivity Action = "suspicious_activity"
	SecurityViolation  Action = "security_violation"
	IntrusionDetected  Action = "intrusion_detected"
	DataBreach         Action = "data_breach"

	// Data transfer
	DataExported Action = "data_exported"
	DataImported Action = "data_imported"
	DataDeleted  Action = "data_deleted"
	DataArchived Action = "data_archived"

	// audit-self-reporting (used by the capture front-end and monitor;
	// see spec.md §4.B and §4.G)
	AuditDropped          Action = "audit_dropped"
	IntegrityIssueDetected Action = "integrity_issue_detected"
)

// CustomAction returns an Action carrying an application-defined verb
// not covered by the closed enumeration above. Events built with a
// custom action must set an explicit Severity.
func CustomAction(name string) Action {
	return Action("custom:" + name)
}

// IsCustom reports whether a is a CustomAction.
func (a Action) IsCustom() bool {
	return strings.HasPrefix(string(a), "custom:")
}

// DefaultSeverity returns the severity that applies when an event's
// builder does not override it explicitly. Custom actions default to
// Info, but callers are expected to override it (spec.md §4.A).
func (a Action) DefaultSeverity() Severity {
	switch a {
	case DataBreach, IntrusionDetected, SecurityViolation:
		return Critical
	case LoginFailed, AccessDenied, SuspiciousActivity, UserDeleted,
		MissionFailed, SystemError, IntegrityIssueDetected:
		return High
	case PasswordChange, PasswordReset, PermissionChange, RoleAssigned,
		RoleRevoked, ConfigUpdated, ConfigDeleted, UserUpdated:
		return Medium
	case Login, Logout, TokenRefresh, UserCreated, MissionCreated, ConfigCreated:
		return Low
	default:
		return Info
	}
}

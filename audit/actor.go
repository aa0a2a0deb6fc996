package audit

import (
	"fmt"
	"os"
)

// ActorKind discriminates the AuditActor tagged variants.
type ActorKind string

const (
	ActorUser      ActorKind = "user"
	ActorSystem    ActorKind = "system"
	ActorAPIClient ActorKind = "api_client"
	ActorBackend   ActorKind = "backend"
	ActorUnknown   ActorKind = "unknown"
)

// Actor is the entity that initiated an audit event. It is a tagged
// union over the ActorKind variants; only the fields relevant to Kind
// are populated.
type Actor struct {
	Kind ActorKind `json:"type"`

	// User
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// System
	Component string `json:"component,omitempty"`
	ProcessID int    `json:"process_id,omitempty"`

	// APIClient
	ClientID   string `json:"client_id,omitempty"`
	ClientName string `json:"client_name,omitempty"`

	// Backend
	BackendName string `json:"backend_name,omitempty"`
	Model       string `json:"model,omitempty"`
}

// UserActor constructs a User actor.
func UserActor(userID string) Actor {
	return Actor{Kind: ActorUser, UserID: userID}
}

// SystemActor constructs a System actor, tagging the calling process's
// pid the way the teacher's own daemon reports itself.
func SystemActor(component string) Actor {
	return Actor{Kind: ActorSystem, Component: component, ProcessID: os.Getpid()}
}

// APIClientActor constructs an ApiClient actor.
func APIClientActor(clientID string) Actor {
	return Actor{Kind: ActorAPIClient, ClientID: clientID}
}

// BackendActor constructs a Backend actor.
func BackendActor(backendName string) Actor {
	return Actor{Kind: ActorBackend, BackendName: backendName}
}

// UnknownActor is the actor recorded for legacy or unattributable events.
func UnknownActor() Actor {
	return Actor{Kind: ActorUnknown}
}

// Identifier returns a human-readable display identifier for the actor.
func (a Actor) Identifier() string {
	switch a.Kind {
	case ActorUser:
		if a.Username != "" {
			return a.Username
		}
		return a.UserID
	case ActorSystem:
		return fmt.Sprintf("system:%s", a.Component)
	case ActorAPIClient:
		if a.ClientName != "" {
			return a.ClientName
		}
		return a.ClientID
	case ActorBackend:
		return fmt.Sprintf("backend:%s", a.BackendName)
	default:
		return "unknown"
	}
}

// Valid reports whether the Kind tag is recognised.
func (a Actor) Valid() bool {
	switch a.Kind {
	case ActorUser, ActorSystem, ActorAPIClient, ActorBackend, ActorUnknown:
		return true
	}
	return false
}

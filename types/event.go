package types

import "time"

// AuthEventType names a security-relevant state change.
type AuthEventType string

const (
	EventLoginSucceeded AuthEventType = "login.succeeded"
	EventLoginFailed    AuthEventType = "login.failed"
	EventLogout         AuthEventType = "logout"
	EventBootstrapAdmin AuthEventType = "user.bootstrap_admin"
	EventUserCreated    AuthEventType = "user.created"
	EventUserDeleted    AuthEventType = "user.deleted"
	EventKeyCreated     AuthEventType = "apikey.created"
	EventKeyToggled     AuthEventType = "apikey.toggled"
	EventKeyDeleted     AuthEventType = "apikey.deleted"
	EventKeyRejected    AuthEventType = "apikey.rejected"
	EventSessionsPruned AuthEventType = "session.pruned"
)

// AuthEvent is published on the event bus for every credential lifecycle change.
// It never carries secrets, only identifiers.
type AuthEvent struct {
	Type      AuthEventType `json:"type"`
	ActorID   string        `json:"actor_id,omitempty"`
	SubjectID string        `json:"subject_id,omitempty"`
	Email     string        `json:"email,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	At        time.Time     `json:"at"`
}

// CredentialSnapshot is the audit export document.
type CredentialSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Users       []User       `json:"users"`
	APIKeys     []APIKeyView `json:"api_keys"`
}

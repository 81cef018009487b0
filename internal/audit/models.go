package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - group_id is required for isolation between families.
// - actor and ip capture are best-effort; do not block call flows on audit failures.
type Event struct {
	ID      string `json:"id" db:"id"`
	GroupID string `json:"group_id" db:"group_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated member causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	CallID      string `json:"call_id,omitempty" db:"call_id"`
	RecordingID string `json:"recording_id,omitempty" db:"recording_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction     EventType = "admin_action"
	EventTypeCallTerminated  EventType = "call_terminated"
	EventTypeRecordingHidden EventType = "recording_hidden"
)

package audit

import "time"

// Event is an immutable, append-only record of an operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and ip capture are best-effort; do not block critical flows on
//   audit failures.

type Event struct {
	ID string `json:"id"`

	Type EventType `json:"type"`

	// Actor is the authenticated operator causing the event.
	Actor string `json:"actor,omitempty"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty"`

	// Target identifiers (optional, depending on the event type).
	CallID int64 `json:"call_id,omitempty"`
	CartID int64 `json:"cart_id,omitempty"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeLogin      EventType = "dashboard_login"
	EventTypeRuleChange EventType = "rule_change"
	EventTypeCartUpdate EventType = "cart_update"
	EventTypeBulkImport EventType = "bulk_import"
)

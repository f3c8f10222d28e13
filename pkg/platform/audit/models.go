package audit

import (
	"context"
	"time"

	"civicid/pkg/domain"
)

// EventCategory classifies events for retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers changes to who owns which DID and what was
	// issued to them. Consumers keep these long term.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers protocol progress useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// EventType names what happened.
type EventType string

const (
	EventConnectionStateChanged EventType = "connection_state_changed"
	EventConnectionFailed       EventType = "connection_failed"
	EventDIDLinked              EventType = "did_linked"
	EventDIDUnlinked            EventType = "did_unlinked"
	EventCredentialIssued       EventType = "credential_issued"
	EventCredentialVerified     EventType = "credential_verified"
	EventDIDCreated             EventType = "did_created"
)

var eventCategories = map[EventType]EventCategory{
	EventDIDLinked:          CategoryCompliance,
	EventDIDUnlinked:        CategoryCompliance,
	EventCredentialIssued:   CategoryCompliance,
	EventDIDCreated:         CategoryCompliance,
	EventCredentialVerified: CategoryOperations,

	EventConnectionStateChanged: CategoryOperations,
	EventConnectionFailed:       CategoryOperations,
}

// Category returns the category for this event type.
// Unknown types default to CategoryOperations.
func (e EventType) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted by services after a state change has been persisted.
// It is transport-agnostic; stores decide where it goes.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Category  EventCategory     `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	UserID    domain.UserID     `json:"userId,omitempty"`
	// Subject is the primary entity: a connection id, a DID or a credential record id.
	Subject   string            `json:"subject,omitempty"`
	From      string            `json:"from,omitempty"`
	To        string            `json:"to,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

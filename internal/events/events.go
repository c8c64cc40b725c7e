package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Account lifecycle event types.
const (
	TypeUserRegistered         = "user.registered"
	TypeVerificationResent     = "user.verification_resent"
	TypePasswordResetRequested = "user.password_reset_requested"
	TypePasswordReset          = "user.password_reset"
	TypeEmailVerified          = "user.email_verified"
	TypeRolesChanged           = "user.roles_changed"
)

// AccountEvent records that an account lifecycle operation completed.
// It never carries secrets such as passwords or tokens.
type AccountEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// UserID identifies the user the event is about
	UserID uuid.UUID `json:"user_id"`

	// Payload contains event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *AccountEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewAccountEvent creates a new AccountEvent for userID. A nil payload
// produces an event without a payload.
func NewAccountEvent(eventType string, userID uuid.UUID, payload interface{}) (*AccountEvent, error) {
	event := &AccountEvent{
		ID:        uuid.New(),
		Type:      eventType,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		event.Payload = payloadBytes
	}

	return event, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *AccountEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *AccountEvent) error
}

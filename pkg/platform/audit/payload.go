package audit

import (
	"encoding/json"
	"time"
)

// Payload is the wire form of an Event on the audit topic and in the outbox.
type Payload struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	Subject      string    `json:"subject,omitempty"`
	ListID       string    `json:"list_id,omitempty"`
	CredentialID string    `json:"credential_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	Device       string    `json:"device,omitempty"`
}

// Marshal encodes event under id. Category is derived from the action when
// the event does not carry one.
func Marshal(id string, event Event) ([]byte, error) {
	category := event.Category
	if category == "" {
		category = AuditEvent(event.Action).Category()
	}
	return json.Marshal(Payload{
		ID:           id,
		Category:     string(category),
		Timestamp:    event.Timestamp.UTC(),
		Action:       event.Action,
		Subject:      event.Subject,
		ListID:       event.ListID,
		CredentialID: event.CredentialID,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
		ActorID:      event.ActorID,
		ClientIP:     event.ClientIP,
		Device:       event.Device,
	})
}

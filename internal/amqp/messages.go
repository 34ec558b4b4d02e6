package amqp

import (
	"encoding/json"
	"time"
)

// MutationMessage announces a ledger mutation to downstream consumers.
// It carries only the event kind and entity ID, consumers fetch current
// state from the API if they need it.
type MutationMessage struct {
	Kind      string    `json:"kind"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationMessage creates a mutation message stamped with the current time
func NewMutationMessage(kind, entityID string) *MutationMessage {
	return &MutationMessage{
		Kind:      kind,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationMessageFromJSON creates a message from JSON bytes
func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

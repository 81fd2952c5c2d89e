package amqp

import (
	"encoding/json"
	"time"
)

// RetrainMessage asks a worker to retrain the model. An empty UserID trains
// on every transaction.
type RetrainMessage struct {
	UserID    string    `json:"user_id,omitempty"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRetrainMessage creates a retrain request stamped with the current time.
func NewRetrainMessage(userID, reason string) *RetrainMessage {
	return &RetrainMessage{
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RetrainMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RetrainMessageFromJSON creates a message from JSON bytes
func RetrainMessageFromJSON(data []byte) (*RetrainMessage, error) {
	var msg RetrainMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Package event defines the immutable audit events emitted for every
// state change in an order's lifecycle.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	TypeOrderCreated       Type = "ORDER_CREATED"
	TypeRiskCheckStarted   Type = "RISK_CHECK_STARTED"
	TypeRiskCheckPassed    Type = "RISK_CHECK_PASSED"
	TypeRiskCheckFailed    Type = "RISK_CHECK_FAILED"
	TypeExecutionStarted   Type = "EXECUTION_STARTED"
	TypeExecutionCompleted Type = "EXECUTION_COMPLETED"
	TypeExecutionFailed    Type = "EXECUTION_FAILED"
	TypeOrderCancelled     Type = "ORDER_CANCELLED"
)

// Event is an immutable audit record. Every event produced for one
// submission shares the submission's correlation ID.
type Event struct {
	ID            string                 `json:"event_id"`
	Type          Type                   `json:"event_type"`
	CorrelationID string                 `json:"correlation_id"`
	OrderID       string                 `json:"order_id"`
	Timestamp     time.Time              `json:"timestamp"`
	Payload       map[string]interface{} `json:"payload"`
	UserID        string                 `json:"user_id,omitempty"`
}

// New builds an event with a fresh ID and a UTC timestamp.
func New(t Type, correlationID, orderID, userID string, payload map[string]interface{}) Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return Event{
		ID:            uuid.New().String(),
		Type:          t,
		CorrelationID: correlationID,
		OrderID:       orderID,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
		UserID:        userID,
	}
}

// Serialize projects the event into a plain map suitable for replay and
// JSON transport: the timestamp as an ISO-8601 string, the type as its
// string value.
func (e Event) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"event_id":       e.ID,
		"event_type":     string(e.Type),
		"correlation_id": e.CorrelationID,
		"order_id":       e.OrderID,
		"timestamp":      e.Timestamp.Format(time.RFC3339Nano),
		"payload":        e.Payload,
		"user_id":        e.UserID,
	}
}

package order

import (
	"fmt"
	"time"
)

// Side represents whether the order is buying or selling.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide converts a wire value into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid order side: %q", s)
	}
}

// Status represents the current state of the order lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRiskCheck Status = "RISK_CHECK"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusExecuting Status = "EXECUTING"
	StatusExecuted  Status = "EXECUTED"
	StatusFailed    Status = "FAILED"
	// StatusCancelled is reserved; no transition reaches it.
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExecuted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// validTransitions encodes the order state machine. APPROVED may move
// directly to FAILED when the circuit breaker blocks execution.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRiskCheck},
	StatusRiskCheck: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusExecuting, StatusFailed},
	StatusExecuting: {StatusExecuted, StatusFailed},
	StatusRejected:  {},
	StatusExecuted:  {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// CanTransition reports whether the state machine permits moving from
// current to next.
func CanTransition(current, next Status) bool {
	for _, allowed := range validTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is the core order entity. It is created during submission and
// mutated only by the execution engine under its lock.
type Order struct {
	ID               string    `json:"order_id"`
	CorrelationID    string    `json:"correlation_id"`
	Symbol           string    `json:"symbol"`
	Side             Side      `json:"side"`
	Quantity         float64   `json:"quantity"`
	Price            float64   `json:"price"`
	Strategy         string    `json:"strategy"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UserID           string    `json:"user_id"`
	ClientOrderID    string    `json:"client_order_id,omitempty"`
	ExecutedQuantity float64   `json:"executed_quantity"`
	ExecutedPrice    *float64  `json:"executed_price,omitempty"`
	RejectionReason  string    `json:"rejection_reason,omitempty"`
	RetryCount       int       `json:"retry_count"`
}

// NotionalValue returns quantity times limit price.
func (o *Order) NotionalValue() float64 {
	return o.Quantity * o.Price
}

// Clone returns a snapshot copy so readers can inspect the order without
// holding the engine lock.
func (o *Order) Clone() *Order {
	c := *o
	if o.ExecutedPrice != nil {
		p := *o.ExecutedPrice
		c.ExecutedPrice = &p
	}
	return &c
}

package models

import (
	"encoding/json"
	"time"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliveryDLQ     DeliveryStatus = "dlq"
)

// MaxAttempts is the total attempt budget for retryable failures.
const MaxAttempts = 3

type Delivery struct {
	ID            string          `json:"id"`
	EndpointID    string          `json:"endpoint_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        DeliveryStatus  `json:"status"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	HTTPStatus    *int            `json:"http_status,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Terminal reports whether the delivery reached a state that is never
// re-attempted.
func (d *Delivery) Terminal() bool {
	switch d.Status {
	case DeliverySent, DeliveryFailed, DeliveryDLQ:
		return true
	}
	return false
}

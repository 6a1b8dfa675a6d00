package models

import "time"

type EndpointStatus string

const (
	EndpointActive   EndpointStatus = "active"
	EndpointDisabled EndpointStatus = "disabled"
)

type Endpoint struct {
	ID                  string         `json:"id"`
	TenantID            string         `json:"tenant_id"`
	URL                 string         `json:"url"`
	Secret              string         `json:"secret,omitempty"`
	SubscribedEvents    []string       `json:"subscribed_events"`
	Status              EndpointStatus `json:"status"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastTriggeredAt     *time.Time     `json:"last_triggered_at,omitempty"`
	LastSuccessAt       *time.Time     `json:"last_success_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

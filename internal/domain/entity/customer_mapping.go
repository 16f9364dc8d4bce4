package entity

import "time"

// CustomerMapping links an application user to exactly one Stripe customer.
type CustomerMapping struct {
	UserID           string    `json:"user_id"`
	StripeCustomerID string    `json:"stripe_customer_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MappingChangedEvent is published whenever reconciliation points a user at a new customer.
type MappingChangedEvent struct {
	UserID             string          `json:"user_id"`
	PreviousCustomerID string          `json:"previous_customer_id,omitempty"`
	CustomerID         string          `json:"customer_id"`
	Action             ReconcileAction `json:"action"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

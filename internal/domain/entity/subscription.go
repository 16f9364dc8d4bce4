package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Subscription struct {
	ID                string             `json:"id"`
	CustomerID        string             `json:"customer_id"`
	Status            string             `json:"status"`
	CurrentPeriodEnd  time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
	Items             []SubscriptionItem `json:"items"`
	CreatedAt         time.Time          `json:"created_at"`
}

// PriceID returns the price of the first item, which is the plan for single-item subscriptions.
func (s Subscription) PriceID() string {
	if len(s.Items) == 0 {
		return ""
	}
	return s.Items[0].PriceID
}

type SubscriptionItem struct {
	ID            string `json:"id"`
	PriceID       string `json:"price_id"`
	ProductName   string `json:"product_name"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Interval      string `json:"interval"`
	IntervalCount int64  `json:"interval_count"`
}

// Plan is a purchasable recurring price shown in the pricing catalog.
type Plan struct {
	ID            string          `json:"id"` // Stripe price id
	ProductID     string          `json:"product_id,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	UnitAmount    int64           `json:"unit_amount"`
	Currency      string          `json:"currency"`
	Interval      string          `json:"interval,omitempty"`
	IntervalCount int64           `json:"interval_count,omitempty"`
	Features      []string        `json:"features"`
	Popular       bool            `json:"popular"`
}

// CheckoutSession is the hosted page a customer is redirected to.
type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// WebhookEvent is the verified, provider-neutral view of a Stripe event.
type WebhookEvent struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	CustomerID        string    `json:"customer_id,omitempty"`
	ClientReferenceID string    `json:"client_reference_id,omitempty"`
	SubscriptionID    string    `json:"subscription_id,omitempty"`
	Status            string    `json:"status,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

package model

import "time"

// UserStripeMapping maps an application user to a Stripe customer.
// Both columns are unique so a customer can never be claimed by two users.
type UserStripeMapping struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           string    `gorm:"column:user_id;uniqueIndex;not null;size:64" json:"user_id"`
	StripeCustomerID string    `gorm:"column:stripe_customer_id;uniqueIndex;not null;size:100" json:"stripe_customer_id"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (UserStripeMapping) TableName() string {
	return "user_stripe_mappings"
}

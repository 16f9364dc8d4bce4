package entity

import (
	"strings"
	"time"
)

// Metadata keys written on Stripe customers.
const (
	MetadataUserID            = "supabase_user_id"
	MetadataMigratedFromGuest = "migrated_from_guest"
)

// Address is the postal address carried over when a guest is migrated.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// CustomerFields is a live (non-deleted) billing customer.
type CustomerFields struct {
	ID          string            `json:"id"`
	Email       string            `json:"email,omitempty"`
	Name        string            `json:"name,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Address     *Address          `json:"address,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Created     time.Time         `json:"created"`
}

// UserID returns the application user id recorded in metadata, or "".
func (c CustomerFields) UserID() string {
	return c.Metadata[MetadataUserID]
}

// BillingCustomer is either an active customer or a deleted tombstone that only
// carries its id. The zero value is neither and is treated as malformed.
type BillingCustomer struct {
	active    *CustomerFields
	deletedID string
}

// ActiveCustomer wraps live customer fields.
func ActiveCustomer(fields CustomerFields) BillingCustomer {
	return BillingCustomer{active: &fields}
}

// DeletedCustomer is the tombstone returned for a deleted customer id.
func DeletedCustomer(id string) BillingCustomer {
	return BillingCustomer{deletedID: id}
}

// ID returns the customer id of either variant.
func (c BillingCustomer) ID() string {
	if c.active != nil {
		return c.active.ID
	}
	return c.deletedID
}

// IsDeleted reports whether this is the deleted variant.
func (c BillingCustomer) IsDeleted() bool {
	return c.active == nil && c.deletedID != ""
}

// Active returns the live fields and true for the active variant.
func (c BillingCustomer) Active() (CustomerFields, bool) {
	if c.active == nil {
		return CustomerFields{}, false
	}
	return *c.active, true
}

// Classification is the outcome of classifying a billing customer.
type Classification string

const (
	ClassificationProper Classification = "proper"
	ClassificationGuest  Classification = "guest"
)

// EmailLocalPart returns the part of an email before "@", used as the default customer name.
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

package usecase

import (
	"strings"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
)

// guestDescriptionMarker marks customers created by anonymous checkouts.
const guestDescriptionMarker = "Guest"

// ClassifyCustomer decides whether a billing customer is a proper, user-owned record.
// Deleted and malformed records are guests.
func ClassifyCustomer(customer entity.BillingCustomer) entity.Classification {
	fields, ok := customer.Active()
	if !ok {
		return entity.ClassificationGuest
	}
	return ClassifyFields(fields)
}

// ClassifyFields classifies a live customer: it is a guest when no user id is
// recorded in metadata or the description carries the guest marker.
func ClassifyFields(fields entity.CustomerFields) entity.Classification {
	if fields.UserID() == "" {
		return entity.ClassificationGuest
	}
	if strings.Contains(fields.Description, guestDescriptionMarker) {
		return entity.ClassificationGuest
	}
	return entity.ClassificationProper
}

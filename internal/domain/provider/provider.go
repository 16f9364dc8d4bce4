package provider

import (
	"context"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
)

// BillingDirectory is the customer directory of the billing provider.
//
// Failures are reported as errors.ErrDirectoryUnavailable (wrapped); a missing
// customer on RetrieveByID is errors.ErrCustomerNotFound.
type BillingDirectory interface {
	// FindByEmail returns the first non-deleted customer with this email, or nil.
	FindByEmail(ctx context.Context, email string) (*entity.CustomerFields, error)
	// ListByEmail returns a single page of at most limit customers with this email.
	ListByEmail(ctx context.Context, email string, limit int) ([]entity.CustomerFields, error)
	RetrieveByID(ctx context.Context, customerID string) (entity.BillingCustomer, error)
	Create(ctx context.Context, params CreateCustomerParams) (entity.CustomerFields, error)
	// UpdateMetadata replaces the customer's metadata with the given map.
	UpdateMetadata(ctx context.Context, customerID string, metadata map[string]string) (entity.CustomerFields, error)
	Delete(ctx context.Context, customerID string) (DeletionConfirmation, error)

	// Presence checks, each a single limit-1 listing.
	HasSubscriptions(ctx context.Context, customerID string) (bool, error)
	HasPaymentMethods(ctx context.Context, customerID string) (bool, error)
	HasInvoices(ctx context.Context, customerID string) (bool, error)
}

// CreateCustomerParams are the fields of a new customer.
type CreateCustomerParams struct {
	Email    string
	Name     string
	Phone    string
	Address  *entity.Address
	Metadata map[string]string
}

// DeletionConfirmation is what the provider returns for a delete.
type DeletionConfirmation struct {
	ID      string
	Deleted bool
}

// CheckoutGateway covers the hosted checkout, portal and subscription surfaces.
type CheckoutGateway interface {
	CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckoutRequest) (*entity.CheckoutSession, error)
	CreateDonationCheckout(ctx context.Context, req DonationCheckoutRequest) (*entity.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// ActiveSubscription returns the customer's first active subscription, or nil.
	ActiveSubscription(ctx context.Context, customerID string) (*entity.Subscription, error)
	// ChangeSubscriptionPrice moves the first item of a subscription to newPriceID with proration.
	ChangeSubscriptionPrice(ctx context.Context, subscriptionID, itemID, newPriceID string) (*entity.Subscription, error)

	// ListRecurringPrices returns active recurring prices with their products.
	ListRecurringPrices(ctx context.Context) ([]entity.Plan, error)

	// ParseWebhook verifies the signature and decodes the event.
	ParseWebhook(payload []byte, signature string) (*entity.WebhookEvent, error)
}

// SubscriptionCheckoutRequest starts a subscription-mode checkout for a known customer.
type SubscriptionCheckoutRequest struct {
	CustomerID        string
	PriceID           string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
}

// DonationCheckoutRequest starts a one-off payment with inline price data.
type DonationCheckoutRequest struct {
	AmountMinor   int64
	Currency      string
	CustomerEmail string
	ProductName   string
	SuccessURL    string
	CancelURL     string
}

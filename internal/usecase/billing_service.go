package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"github.com/wekeepgrowing/billing-identity/internal/domain/provider"
	"go.uber.org/zap"
)

// BillingService implements the checkout, portal and subscription flows on top of
// the reconciled customer.
type BillingService struct {
	customers       *CustomerService
	gateway         provider.CheckoutGateway
	clientURL       string
	defaultCurrency string
	logger          *zap.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(
	customers *CustomerService,
	gateway provider.CheckoutGateway,
	clientURL string,
	defaultCurrency string,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		customers:       customers,
		gateway:         gateway,
		clientURL:       strings.TrimRight(clientURL, "/"),
		defaultCurrency: strings.ToLower(defaultCurrency),
		logger:          logger,
	}
}

// CreateSubscriptionCheckout reconciles the user's customer and opens a subscription checkout for priceID.
func (s *BillingService) CreateSubscriptionCheckout(ctx context.Context, userID, email, priceID string) (*entity.CheckoutSession, entity.ReconcileResult, error) {
	_, result, err := s.customers.EnsureCustomerForUser(ctx, userID, email)
	if err != nil {
		return nil, result, err
	}

	session, err := s.gateway.CreateSubscriptionCheckout(ctx, provider.SubscriptionCheckoutRequest{
		CustomerID:        result.CustomerID,
		PriceID:           priceID,
		ClientReferenceID: userID,
		SuccessURL:        s.clientURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.clientURL + "/cancel",
	})
	if err != nil {
		return nil, result, fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info("BillingService: checkout session created",
		zap.String("user_id", userID),
		zap.String("customer_id", result.CustomerID),
		zap.String("price_id", priceID),
		zap.String("session_id", session.ID),
		zap.String("reconcile_action", string(result.Action)))

	return session, result, nil
}

// CreateDonationCheckout opens a one-off payment for amount in currency (default currency when empty).
func (s *BillingService) CreateDonationCheckout(ctx context.Context, amount decimal.Decimal, currency, email string) (*entity.CheckoutSession, error) {
	if !amount.IsPositive() {
		return nil, domainErrors.ErrInvalidAmount
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	session, err := s.gateway.CreateDonationCheckout(ctx, provider.DonationCheckoutRequest{
		AmountMinor:   entity.MajorToMinor(amount, currency),
		Currency:      currency,
		CustomerEmail: email,
		ProductName:   "Donation",
		SuccessURL:    s.clientURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.clientURL + "/cancel",
	})
	if err != nil {
		return nil, fmt.Errorf("create donation session: %w", err)
	}
	return session, nil
}

// CreatePortalSession opens the billing portal for the user's mapped customer.
func (s *BillingService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	customerID, err := s.customers.MappedCustomerID(ctx, userID)
	if err != nil {
		return "", err
	}

	url, err := s.gateway.CreatePortalSession(ctx, customerID, s.clientURL+"/dashboard")
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return url, nil
}

// CurrentSubscription returns the user's active subscription.
func (s *BillingService) CurrentSubscription(ctx context.Context, userID string) (*entity.Subscription, error) {
	customerID, err := s.customers.MappedCustomerID(ctx, userID)
	if err != nil {
		return nil, err
	}

	subscription, err := s.gateway.ActiveSubscription(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	if subscription == nil {
		return nil, domainErrors.ErrNoActiveSubscription
	}
	return subscription, nil
}

// ModifySubscription moves the user's active subscription to newPriceID with proration.
func (s *BillingService) ModifySubscription(ctx context.Context, userID, newPriceID string) (*entity.Subscription, error) {
	current, err := s.CurrentSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(current.Items) == 0 {
		return nil, domainErrors.ErrNoActiveSubscription
	}
	if current.PriceID() == newPriceID {
		return nil, domainErrors.ErrSamePlan
	}

	updated, err := s.gateway.ChangeSubscriptionPrice(ctx, current.ID, current.Items[0].ID, newPriceID)
	if err != nil {
		return nil, fmt.Errorf("change subscription price: %w", err)
	}

	s.logger.Info("BillingService: subscription plan changed",
		zap.String("user_id", userID),
		zap.String("subscription_id", current.ID),
		zap.String("previous_price_id", current.PriceID()),
		zap.String("price_id", newPriceID))

	return updated, nil
}

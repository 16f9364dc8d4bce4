package errors

import "errors"

var (
	// ErrNoCustomerMapping indicates that the user has no associated Stripe customer
	ErrNoCustomerMapping = errors.New("no customer mapping found for user")

	// ErrNoActiveSubscription indicates that the customer has no active subscription
	ErrNoActiveSubscription = errors.New("no active subscription found")

	// ErrSamePlan indicates a plan change to the price the subscription already has
	ErrSamePlan = errors.New("subscription is already on this plan")

	// ErrInvalidAmount indicates a non-positive checkout amount
	ErrInvalidAmount = errors.New("amount must be positive")
)

var (
	// ErrInvalidWebhookSignature indicates a webhook payload whose signature could not be verified
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	// ErrProviderRejected indicates the billing provider refused the request as invalid (bad price id etc.)
	ErrProviderRejected = errors.New("request rejected by billing provider")
)

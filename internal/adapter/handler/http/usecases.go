package http

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	"github.com/wekeepgrowing/billing-identity/internal/usecase"
)

// BillingUsecase is the checkout, portal and subscription surface used by the handlers.
type BillingUsecase interface {
	CreateSubscriptionCheckout(ctx context.Context, userID, email, priceID string) (*entity.CheckoutSession, entity.ReconcileResult, error)
	CreateDonationCheckout(ctx context.Context, amount decimal.Decimal, currency, email string) (*entity.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
	CurrentSubscription(ctx context.Context, userID string) (*entity.Subscription, error)
	ModifySubscription(ctx context.Context, userID, newPriceID string) (*entity.Subscription, error)
}

// CustomerUsecase reconciles and describes the caller's billing customer.
type CustomerUsecase interface {
	EnsureCustomerForUser(ctx context.Context, userID, email string) (*entity.CustomerMapping, entity.ReconcileResult, error)
	DescribeMapping(ctx context.Context, userID string) (*usecase.MappingDescription, error)
	LinkCheckoutCustomer(ctx context.Context, userID, customerID string) (bool, error)
}

type PlanUsecase interface {
	Plans(ctx context.Context) ([]entity.Plan, error)
	Invalidate()
}

// AuditUsecase is the duplicate customer auditor.
type AuditUsecase interface {
	Analyze(ctx context.Context, email string) (*entity.AuditReport, error)
	Delete(ctx context.Context, customerID string) (*entity.DeletionResult, error)
}

// WebhookVerifier verifies and decodes provider webhooks.
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (*entity.WebhookEvent, error)
}

var (
	_ BillingUsecase  = (*usecase.BillingService)(nil)
	_ CustomerUsecase = (*usecase.CustomerService)(nil)
	_ PlanUsecase     = (*usecase.PlanCatalog)(nil)
	_ AuditUsecase    = (*usecase.DuplicateAuditor)(nil)
)

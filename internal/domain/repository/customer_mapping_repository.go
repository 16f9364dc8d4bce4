package repository

import (
	"context"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
)

// CustomerMappingRepository stores user id to Stripe customer id mappings.
// Getters return (nil, nil) when no row exists.
type CustomerMappingRepository interface {
	GetByUserID(ctx context.Context, userID string) (*entity.CustomerMapping, error)
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*entity.CustomerMapping, error)
	// Upsert inserts or replaces the row keyed by user id. It returns
	// errors.ErrCustomerAlreadyMapped when another user already owns the customer id.
	Upsert(ctx context.Context, userID, stripeCustomerID string) (*entity.CustomerMapping, error)
}

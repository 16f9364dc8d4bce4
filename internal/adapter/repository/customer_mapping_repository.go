package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"github.com/wekeepgrowing/billing-identity/internal/domain/model"
	"github.com/wekeepgrowing/billing-identity/internal/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type customerMappingRepository struct {
	db *gorm.DB
}

func NewCustomerMappingRepository(db *gorm.DB) repository.CustomerMappingRepository {
	return &customerMappingRepository{
		db: db,
	}
}

// modelToEntity converts a model.UserStripeMapping to entity.CustomerMapping
func (r *customerMappingRepository) modelToEntity(m *model.UserStripeMapping) *entity.CustomerMapping {
	if m == nil {
		return nil
	}
	return &entity.CustomerMapping{
		UserID:           m.UserID,
		StripeCustomerID: m.StripeCustomerID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func (r *customerMappingRepository) GetByUserID(ctx context.Context, userID string) (*entity.CustomerMapping, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *customerMappingRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*entity.CustomerMapping, error) {
	return r.first(ctx, "stripe_customer_id = ?", stripeCustomerID)
}

func (r *customerMappingRepository) first(ctx context.Context, query string, arg string) (*entity.CustomerMapping, error) {
	var mapping model.UserStripeMapping
	err := r.db.WithContext(ctx).Where(query, arg).First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrMappingStoreUnavailable, err)
	}
	return r.modelToEntity(&mapping), nil
}

// Upsert inserts the mapping or repoints the existing row of the user.
func (r *customerMappingRepository) Upsert(ctx context.Context, userID, stripeCustomerID string) (*entity.CustomerMapping, error) {
	mapping := model.UserStripeMapping{
		UserID:           userID,
		StripeCustomerID: stripeCustomerID,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stripe_customer_id", "updated_at"}),
	}).Create(&mapping).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", domainErrors.ErrCustomerAlreadyMapped, stripeCustomerID)
		}
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrMappingStoreUnavailable, err)
	}

	// Re-read so created_at reflects the original insert on the update path
	return r.GetByUserID(ctx, userID)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

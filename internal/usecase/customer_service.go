package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"github.com/wekeepgrowing/billing-identity/internal/domain/provider"
	"github.com/wekeepgrowing/billing-identity/internal/domain/repository"
	"github.com/wekeepgrowing/billing-identity/internal/metrics"
	"go.uber.org/zap"
)

// CustomerLocker serializes reconciliation per user.
type CustomerLocker interface {
	// Lock blocks until the key is held or ctx ends. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventPublisher publishes mapping change notifications.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// CustomerService ties the mapping store to the reconciliation engine.
type CustomerService struct {
	reconciler *CustomerReconciler
	mappings   repository.CustomerMappingRepository
	directory  provider.BillingDirectory
	locker     CustomerLocker
	publisher  EventPublisher
	channel    string
	metrics    metrics.BillingMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewCustomerService creates a new customer service. publisher may be nil.
func NewCustomerService(
	reconciler *CustomerReconciler,
	mappings repository.CustomerMappingRepository,
	directory provider.BillingDirectory,
	locker CustomerLocker,
	publisher EventPublisher,
	channel string,
	billingMetrics metrics.BillingMetrics,
	logger *zap.Logger,
) *CustomerService {
	return &CustomerService{
		reconciler: reconciler,
		mappings:   mappings,
		directory:  directory,
		locker:     locker,
		publisher:  publisher,
		channel:    channel,
		metrics:    billingMetrics,
		logger:     logger,
		now:        time.Now,
	}
}

func lockKey(userID string) string {
	return "billing:customer:" + userID
}

// EnsureCustomerForUser runs reconciliation for the user under the per-user lock
// and stores the resulting customer id when it changed.
func (s *CustomerService) EnsureCustomerForUser(ctx context.Context, userID, email string) (*entity.CustomerMapping, entity.ReconcileResult, error) {
	if userID == "" || email == "" {
		return nil, entity.ReconcileResult{}, domainErrors.ErrInvalidIdentity
	}

	unlock, err := s.locker.Lock(ctx, lockKey(userID))
	if err != nil {
		return nil, entity.ReconcileResult{}, fmt.Errorf("%w: %v", domainErrors.ErrLockNotAcquired, err)
	}
	defer unlock()

	mapping, err := s.mappings.GetByUserID(ctx, userID)
	if err != nil {
		return nil, entity.ReconcileResult{}, fmt.Errorf("get customer mapping: %w", err)
	}

	existingCustomerID := ""
	if mapping != nil {
		existingCustomerID = mapping.StripeCustomerID
	}

	start := time.Now()
	result, err := s.reconciler.EnsureCustomer(ctx, existingCustomerID, email, userID)
	s.metrics.ObserveReconciliation(string(result.Action), err, time.Since(start))
	if err != nil {
		return nil, entity.ReconcileResult{}, err
	}

	if !result.Changed(existingCustomerID) {
		return mapping, result, nil
	}

	updated, err := s.mappings.Upsert(ctx, userID, result.CustomerID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrCustomerAlreadyMapped) {
			s.metrics.IncMappingWrite(metrics.MappingWriteConflict)
		} else {
			s.metrics.IncMappingWrite(metrics.MappingWriteError)
		}
		return nil, result, fmt.Errorf("store customer mapping: %w", err)
	}
	s.metrics.IncMappingWrite(metrics.MappingWriteUpserted)

	s.logger.Info("CustomerService: customer mapping updated",
		zap.String("user_id", userID),
		zap.String("previous_customer_id", existingCustomerID),
		zap.String("customer_id", result.CustomerID),
		zap.String("action", string(result.Action)))

	s.publish(ctx, entity.MappingChangedEvent{
		UserID:             userID,
		PreviousCustomerID: existingCustomerID,
		CustomerID:         result.CustomerID,
		Action:             result.Action,
		OccurredAt:         s.now().UTC(),
	})

	return updated, result, nil
}

// publish is best effort; the mapping is already stored.
func (s *CustomerService) publish(ctx context.Context, event entity.MappingChangedEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, s.channel, event); err != nil {
		s.logger.Warn("CustomerService: failed to publish mapping event",
			zap.String("user_id", event.UserID),
			zap.Error(err))
	}
}

// MappedCustomerID returns the user's stored customer id or ErrNoCustomerMapping.
func (s *CustomerService) MappedCustomerID(ctx context.Context, userID string) (string, error) {
	mapping, err := s.mappings.GetByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get customer mapping: %w", err)
	}
	if mapping == nil {
		return "", domainErrors.ErrNoCustomerMapping
	}
	return mapping.StripeCustomerID, nil
}

// LinkCheckoutCustomer records the customer of a completed checkout for a user
// that has no mapping yet. Existing mappings are left alone. It reports whether a row was written.
func (s *CustomerService) LinkCheckoutCustomer(ctx context.Context, userID, customerID string) (bool, error) {
	if userID == "" || customerID == "" {
		return false, domainErrors.ErrInvalidIdentity
	}

	unlock, err := s.locker.Lock(ctx, lockKey(userID))
	if err != nil {
		return false, fmt.Errorf("%w: %v", domainErrors.ErrLockNotAcquired, err)
	}
	defer unlock()

	mapping, err := s.mappings.GetByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get customer mapping: %w", err)
	}
	if mapping != nil {
		if mapping.StripeCustomerID != customerID {
			s.logger.Info("CustomerService: checkout customer differs from mapping, keeping mapping",
				zap.String("user_id", userID),
				zap.String("mapped_customer_id", mapping.StripeCustomerID),
				zap.String("checkout_customer_id", customerID))
		}
		return false, nil
	}

	if _, err := s.mappings.Upsert(ctx, userID, customerID); err != nil {
		if errors.Is(err, domainErrors.ErrCustomerAlreadyMapped) {
			s.metrics.IncMappingWrite(metrics.MappingWriteConflict)
		} else {
			s.metrics.IncMappingWrite(metrics.MappingWriteError)
		}
		return false, fmt.Errorf("store customer mapping: %w", err)
	}
	s.metrics.IncMappingWrite(metrics.MappingWriteUpserted)

	s.publish(ctx, entity.MappingChangedEvent{
		UserID:     userID,
		CustomerID: customerID,
		Action:     entity.ActionCreated,
		OccurredAt: s.now().UTC(),
	})
	return true, nil
}

// MappingDescription is a diagnostic view of a user's mapping and the live customer behind it.
type MappingDescription struct {
	UserID         string                  `json:"user_id"`
	Mapping        *entity.CustomerMapping `json:"mapping"`
	Customer       *entity.CustomerFields  `json:"customer,omitempty"`
	Deleted        bool                    `json:"deleted"`
	Classification entity.Classification   `json:"classification,omitempty"`
	LookupError    string                  `json:"lookup_error,omitempty"`

	// MetadataMatches is true when the customer's metadata claims this user
	MetadataMatches bool `json:"metadata_matches"`
}

// DescribeMapping reads the mapping and the customer it points to without changing anything.
func (s *CustomerService) DescribeMapping(ctx context.Context, userID string) (*MappingDescription, error) {
	mapping, err := s.mappings.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get customer mapping: %w", err)
	}

	desc := &MappingDescription{UserID: userID, Mapping: mapping}
	if mapping == nil {
		return desc, nil
	}

	customer, err := s.directory.RetrieveByID(ctx, mapping.StripeCustomerID)
	if err != nil {
		desc.LookupError = err.Error()
		return desc, nil
	}

	desc.Classification = ClassifyCustomer(customer)
	desc.Deleted = customer.IsDeleted()
	if fields, ok := customer.Active(); ok {
		desc.Customer = &fields
		desc.MetadataMatches = fields.UserID() == userID
	}
	return desc, nil
}

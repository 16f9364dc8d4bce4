package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"github.com/wekeepgrowing/billing-identity/internal/domain/provider"
	"go.uber.org/zap"
)

// CustomerReconciler guarantees that a user ends up with exactly one proper Stripe customer.
// It only talks to the billing directory; persisting the result is the caller's job.
type CustomerReconciler struct {
	directory provider.BillingDirectory
	logger    *zap.Logger
}

// NewCustomerReconciler creates a new customer reconciler
func NewCustomerReconciler(directory provider.BillingDirectory, logger *zap.Logger) *CustomerReconciler {
	return &CustomerReconciler{
		directory: directory,
		logger:    logger,
	}
}

// EnsureCustomer returns the customer id the user should be billed under.
//
// An existing customer with the user's email always wins over existingCustomerID.
// Guests are migrated into new proper customers and left untouched. When
// existingCustomerID cannot be retrieved a fresh customer is created; that is the
// only directory failure that is absorbed.
func (r *CustomerReconciler) EnsureCustomer(
	ctx context.Context,
	existingCustomerID string,
	userEmail string,
	userID string,
) (entity.ReconcileResult, error) {
	userEmail = strings.TrimSpace(userEmail)
	if userID == "" || userEmail == "" {
		return entity.ReconcileResult{}, domainErrors.ErrInvalidIdentity
	}

	logger := r.logger.With(
		zap.String("user_id", userID),
		zap.String("existing_customer_id", existingCustomerID),
	)

	found, err := r.directory.FindByEmail(ctx, userEmail)
	if err != nil {
		return entity.ReconcileResult{}, fmt.Errorf("find customer by email: %w", err)
	}

	if found != nil {
		return r.reconcileFound(ctx, *found, userEmail, userID, logger)
	}

	if existingCustomerID == "" {
		created, err := r.createCustomer(ctx, userEmail, userID)
		if err != nil {
			return entity.ReconcileResult{}, err
		}
		logger.Info("CustomerReconciler: created customer", zap.String("customer_id", created.ID))
		return entity.ReconcileResult{CustomerID: created.ID, Action: entity.ActionCreated}, nil
	}

	existing, err := r.directory.RetrieveByID(ctx, existingCustomerID)
	if err != nil {
		// Stale pointer: the mapped customer is gone or unreadable, start over
		logger.Warn("CustomerReconciler: mapped customer could not be retrieved, creating a new one", zap.Error(err))
		created, err := r.createCustomer(ctx, userEmail, userID)
		if err != nil {
			return entity.ReconcileResult{}, err
		}
		return entity.ReconcileResult{CustomerID: created.ID, Action: entity.ActionRecreatedStale}, nil
	}

	if ClassifyCustomer(existing) == entity.ClassificationGuest {
		guest, ok := existing.Active()
		if !ok {
			guest = entity.CustomerFields{ID: existing.ID()}
		}
		migrated, err := r.migrateGuest(ctx, guest, userEmail, userID)
		if err != nil {
			return entity.ReconcileResult{}, err
		}
		logger.Info("CustomerReconciler: migrated mapped guest customer",
			zap.String("guest_customer_id", guest.ID),
			zap.Bool("guest_deleted", existing.IsDeleted()),
			zap.String("customer_id", migrated.ID))
		return entity.ReconcileResult{
			CustomerID:   migrated.ID,
			Action:       entity.ActionMigratedGuest,
			MigratedFrom: guest.ID,
		}, nil
	}

	return entity.ReconcileResult{CustomerID: existingCustomerID, Action: entity.ActionKeptExisting}, nil
}

// reconcileFound handles a customer matched by email.
func (r *CustomerReconciler) reconcileFound(
	ctx context.Context,
	found entity.CustomerFields,
	userEmail string,
	userID string,
	logger *zap.Logger,
) (entity.ReconcileResult, error) {
	if ClassifyFields(found) == entity.ClassificationGuest {
		migrated, err := r.migrateGuest(ctx, found, userEmail, userID)
		if err != nil {
			return entity.ReconcileResult{}, err
		}
		logger.Info("CustomerReconciler: migrated guest customer found by email",
			zap.String("guest_customer_id", found.ID),
			zap.String("customer_id", migrated.ID))
		return entity.ReconcileResult{
			CustomerID:   migrated.ID,
			Action:       entity.ActionMigratedGuest,
			MigratedFrom: found.ID,
		}, nil
	}

	if found.UserID() != userID {
		metadata := make(map[string]string, len(found.Metadata)+1)
		for k, v := range found.Metadata {
			metadata[k] = v
		}
		metadata[entity.MetadataUserID] = userID

		if _, err := r.directory.UpdateMetadata(ctx, found.ID, metadata); err != nil {
			return entity.ReconcileResult{}, fmt.Errorf("repair customer metadata: %w", err)
		}
		logger.Warn("CustomerReconciler: repaired user id on customer found by email",
			zap.String("customer_id", found.ID),
			zap.String("previous_user_id", found.UserID()))
		return entity.ReconcileResult{CustomerID: found.ID, Action: entity.ActionRepairedMetadata}, nil
	}

	return entity.ReconcileResult{CustomerID: found.ID, Action: entity.ActionMatchedByEmail}, nil
}

func (r *CustomerReconciler) createCustomer(ctx context.Context, userEmail, userID string) (entity.CustomerFields, error) {
	created, err := r.directory.Create(ctx, provider.CreateCustomerParams{
		Email:    userEmail,
		Name:     entity.EmailLocalPart(userEmail),
		Metadata: map[string]string{entity.MetadataUserID: userID},
	})
	if err != nil {
		return entity.CustomerFields{}, fmt.Errorf("create customer: %w", err)
	}
	return created, nil
}

// migrateGuest copies a guest's contact details into a new proper customer.
// The guest record itself is not modified.
func (r *CustomerReconciler) migrateGuest(ctx context.Context, guest entity.CustomerFields, userEmail, userID string) (entity.CustomerFields, error) {
	email := guest.Email
	if email == "" {
		email = userEmail
	}
	name := guest.Name
	if name == "" {
		name = entity.EmailLocalPart(userEmail)
	}

	params := provider.CreateCustomerParams{
		Email: email,
		Name:  name,
		Phone: guest.Phone,
		Metadata: map[string]string{
			entity.MetadataUserID:            userID,
			entity.MetadataMigratedFromGuest: guest.ID,
		},
	}
	if guest.Address != nil && !guest.Address.IsZero() {
		address := *guest.Address
		params.Address = &address
	}

	migrated, err := r.directory.Create(ctx, params)
	if err != nil {
		return entity.CustomerFields{}, fmt.Errorf("migrate guest customer %s: %w", guest.ID, err)
	}
	return migrated, nil
}

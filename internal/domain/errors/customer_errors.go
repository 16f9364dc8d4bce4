package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
)

var (
	// ErrCustomerNotFound indicates the billing directory has no customer with the given id
	ErrCustomerNotFound = errors.New("billing customer not found")

	// ErrDirectoryUnavailable indicates a network or provider failure talking to the billing directory
	ErrDirectoryUnavailable = errors.New("billing directory unavailable")

	// ErrInvalidIdentity indicates an empty user id or email was passed to reconciliation
	ErrInvalidIdentity = errors.New("user id and email are required")

	// ErrCustomerAlreadyMapped indicates the customer id is already mapped to another user
	ErrCustomerAlreadyMapped = errors.New("customer is already mapped to another user")

	// ErrMappingStoreUnavailable indicates the mapping store could not be reached or answered unexpectedly
	ErrMappingStoreUnavailable = errors.New("mapping store unavailable")

	// ErrLockNotAcquired indicates the per-user reconciliation lock could not be taken in time
	ErrLockNotAcquired = errors.New("reconciliation lock not acquired")
)

// UnsafeDeletionError is returned when a delete is refused because the customer
// still has subscriptions, payment methods or invoices.
type UnsafeDeletionError struct {
	CustomerID string
	Facts      entity.CustomerFacts
}

func (e *UnsafeDeletionError) Error() string {
	var reasons []string
	if e.Facts.HasSubscriptions {
		reasons = append(reasons, "subscriptions")
	}
	if e.Facts.HasPaymentMethods {
		reasons = append(reasons, "payment methods")
	}
	if e.Facts.HasInvoices {
		reasons = append(reasons, "invoices")
	}
	return fmt.Sprintf("refusing to delete customer %s: has %s", e.CustomerID, strings.Join(reasons, ", "))
}

// DirectoryError wraps a provider failure with the directory operation that hit it.
// It matches ErrDirectoryUnavailable with errors.Is.
type DirectoryError struct {
	Op         string
	CustomerID string
	Cause      error
}

func (e *DirectoryError) Error() string {
	if e.CustomerID != "" {
		return fmt.Sprintf("%s: %s (customer: %s): %v", ErrDirectoryUnavailable, e.Op, e.CustomerID, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", ErrDirectoryUnavailable, e.Op, e.Cause)
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

func (e *DirectoryError) Is(target error) bool {
	return target == ErrDirectoryUnavailable
}

// NewDirectoryError creates a DirectoryError for op.
func NewDirectoryError(op, customerID string, cause error) *DirectoryError {
	return &DirectoryError{Op: op, CustomerID: customerID, Cause: cause}
}

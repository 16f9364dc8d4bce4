package http

import (
	"errors"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	pkgErrors "github.com/wekeepgrowing/billing-identity/pkg/errors"
	"go.uber.org/zap"
)

// toAppError maps domain errors to API error codes.
func toAppError(err error) *pkgErrors.AppError {
	var unsafe *domainErrors.UnsafeDeletionError
	if errors.As(err, &unsafe) {
		return pkgErrors.NewAppError(pkgErrors.ErrConflict, unsafe.Error(), err).
			WithDetails(echo.Map{
				"customer_id": unsafe.CustomerID,
				"facts":       unsafe.Facts,
			})
	}

	switch {
	case errors.Is(err, domainErrors.ErrInvalidIdentity),
		errors.Is(err, domainErrors.ErrInvalidAmount),
		errors.Is(err, domainErrors.ErrInvalidWebhookSignature):
		return pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, baseMessage(err), err)
	case errors.Is(err, domainErrors.ErrProviderRejected):
		return pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, domainErrors.ErrProviderRejected.Error(), err)
	case errors.Is(err, domainErrors.ErrSamePlan):
		return pkgErrors.NewAppError(pkgErrors.ErrFailedPrecondition, domainErrors.ErrSamePlan.Error(), err)
	case errors.Is(err, domainErrors.ErrNoCustomerMapping),
		errors.Is(err, domainErrors.ErrNoActiveSubscription),
		errors.Is(err, domainErrors.ErrCustomerNotFound):
		return pkgErrors.NewAppError(pkgErrors.ErrNotFound, baseMessage(err), err)
	case errors.Is(err, domainErrors.ErrCustomerAlreadyMapped):
		return pkgErrors.NewAppError(pkgErrors.ErrConflict, domainErrors.ErrCustomerAlreadyMapped.Error(), err)
	case errors.Is(err, domainErrors.ErrLockNotAcquired):
		return pkgErrors.NewAppError(pkgErrors.ErrConflict, "customer reconciliation already in progress, retry shortly", err)
	case errors.Is(err, domainErrors.ErrDirectoryUnavailable):
		return pkgErrors.NewAppError(pkgErrors.ErrUnavailable, domainErrors.ErrDirectoryUnavailable.Error(), err)
	case errors.Is(err, domainErrors.ErrMappingStoreUnavailable):
		return pkgErrors.NewAppError(pkgErrors.ErrUnavailable, domainErrors.ErrMappingStoreUnavailable.Error(), err)
	}
	return pkgErrors.NewAppError(pkgErrors.ErrInternal, "internal server error", err)
}

// baseMessage returns the message of the first known sentinel err wraps.
func baseMessage(err error) string {
	for _, sentinel := range []error{
		domainErrors.ErrInvalidIdentity,
		domainErrors.ErrInvalidAmount,
		domainErrors.ErrInvalidWebhookSignature,
		domainErrors.ErrNoCustomerMapping,
		domainErrors.ErrNoActiveSubscription,
		domainErrors.ErrCustomerNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// respondError logs err and converts it into the echo error returned by the handler.
func respondError(logger *zap.Logger, err error, msg string, fields ...zap.Field) error {
	appErr := toAppError(err)
	pkgErrors.LogError(logger, appErr, msg, fields...)
	return pkgErrors.ToHTTPError(appErr)
}

// badRequest is returned for malformed request bodies.
func badRequest(message string, err error) error {
	return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, message, err))
}

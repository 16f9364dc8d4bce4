package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/billing-identity/internal/middleware/auth"
	"go.uber.org/zap"
)

// CustomerHandler exposes the caller's customer mapping for diagnosis and on-demand repair.
type CustomerHandler struct {
	customers CustomerUsecase
	logger    *zap.Logger
}

func NewCustomerHandler(customers CustomerUsecase, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		customers: customers,
		logger:    logger,
	}
}

// GetMapping returns the stored mapping together with the live Stripe view of the customer.
func (h *CustomerHandler) GetMapping(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	description, err := h.customers.DescribeMapping(c.Request().Context(), user.UserID)
	if err != nil {
		return respondError(h.logger, err, "Failed to describe customer mapping", zap.String("user_id", user.UserID))
	}

	return c.JSON(http.StatusOK, description)
}

// Reconcile runs customer reconciliation for the caller and reports what it did.
func (h *CustomerHandler) Reconcile(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	mapping, result, err := h.customers.EnsureCustomerForUser(c.Request().Context(), user.UserID, user.Email)
	if err != nil {
		return respondError(h.logger, err, "Failed to reconcile customer", zap.String("user_id", user.UserID))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"mapping": mapping,
		"result":  result,
	})
}

package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/billing-identity/internal/middleware/auth"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	billing BillingUsecase
	logger  *zap.Logger
}

func NewSubscriptionHandler(billing BillingUsecase, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		billing: billing,
		logger:  logger,
	}
}

type ModifySubscriptionRequest struct {
	NewPriceID string `json:"newPriceId" validate:"required"`
}

// GetCurrentSubscription returns the caller's active subscription
func (h *SubscriptionHandler) GetCurrentSubscription(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	subscription, err := h.billing.CurrentSubscription(c.Request().Context(), user.UserID)
	if err != nil {
		return respondError(h.logger, err, "Failed to get current subscription", zap.String("user_id", user.UserID))
	}

	return c.JSON(http.StatusOK, subscription)
}

// ModifySubscription moves the caller's subscription to another price with proration
func (h *SubscriptionHandler) ModifySubscription(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req ModifySubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", err)
	}
	if err := c.Validate(&req); err != nil {
		return badRequest("newPriceId is required", err)
	}

	subscription, err := h.billing.ModifySubscription(c.Request().Context(), user.UserID, req.NewPriceID)
	if err != nil {
		return respondError(h.logger, err, "Failed to modify subscription",
			zap.String("user_id", user.UserID),
			zap.String("new_price_id", req.NewPriceID))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"subscription": subscription,
	})
}

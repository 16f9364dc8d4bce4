package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/billing-identity/internal/middleware/auth"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	billing BillingUsecase
	logger  *zap.Logger
}

func NewCheckoutHandler(billing BillingUsecase, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		billing: billing,
		logger:  logger,
	}
}

type CreateCheckoutSessionRequest struct {
	PriceID string `json:"priceId" validate:"required"`
}

type CreateDonationRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Email    string          `json:"email" validate:"omitempty,email"`
}

// CreateCheckoutSession reconciles the caller's Stripe customer and opens a subscription checkout.
func (h *CheckoutHandler) CreateCheckoutSession(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req CreateCheckoutSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", err)
	}
	if err := c.Validate(&req); err != nil {
		return badRequest("priceId is required", err)
	}

	session, result, err := h.billing.CreateSubscriptionCheckout(c.Request().Context(), user.UserID, user.Email, req.PriceID)
	if err != nil {
		return respondError(h.logger, err, "Failed to create checkout session",
			zap.String("user_id", user.UserID),
			zap.String("price_id", req.PriceID))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"sessionId":  session.ID,
		"url":        session.URL,
		"customerId": result.CustomerID,
	})
}

// CreateDonationSession opens a one-off payment checkout with inline price data.
func (h *CheckoutHandler) CreateDonationSession(c echo.Context) error {
	var req CreateDonationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", err)
	}
	if err := c.Validate(&req); err != nil {
		return badRequest("invalid currency or email", err)
	}

	email := req.Email
	if email == "" {
		if user, err := auth.GetUserFromContext(c); err == nil {
			email = user.Email
		}
	}

	session, err := h.billing.CreateDonationCheckout(c.Request().Context(), req.Amount, req.Currency, email)
	if err != nil {
		return respondError(h.logger, err, "Failed to create donation session",
			zap.String("amount", req.Amount.String()),
			zap.String("currency", req.Currency))
	}

	h.logger.Info("Donation checkout session created",
		zap.String("session_id", session.ID),
		zap.String("amount", req.Amount.String()))

	return c.JSON(http.StatusOK, echo.Map{
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// CreatePortalSession opens the Stripe billing portal for the caller's mapped customer.
func (h *CheckoutHandler) CreatePortalSession(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	url, err := h.billing.CreatePortalSession(c.Request().Context(), user.UserID)
	if err != nil {
		return respondError(h.logger, err, "Failed to create portal session", zap.String("user_id", user.UserID))
	}

	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

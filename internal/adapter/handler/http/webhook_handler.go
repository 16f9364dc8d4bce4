package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"github.com/wekeepgrowing/billing-identity/internal/metrics"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 65536

// Webhook processing outcomes recorded per event type
const (
	webhookProcessed        = "processed"
	webhookIgnored          = "ignored"
	webhookInvalidSignature = "invalid_signature"
	webhookFailed           = "error"
)

type WebhookHandler struct {
	verifier  WebhookVerifier
	customers CustomerUsecase
	catalog   PlanUsecase
	metrics   metrics.BillingMetrics
	logger    *zap.Logger
}

func NewWebhookHandler(
	verifier WebhookVerifier,
	customers CustomerUsecase,
	catalog PlanUsecase,
	billingMetrics metrics.BillingMetrics,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		customers: customers,
		catalog:   catalog,
		metrics:   billingMetrics,
		logger:    logger,
	}
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return badRequest("error reading request body", err)
	}

	sig := c.Request().Header.Get("Stripe-Signature")

	event, err := h.verifier.ParseWebhook(body, sig)
	if err != nil {
		h.metrics.IncWebhookEvent("unknown", webhookInvalidSignature)
		return respondError(h.logger, err, "Webhook signature verification failed")
	}

	h.logger.Info("Webhook event received",
		zap.String("type", event.Type),
		zap.String("id", event.ID),
		zap.Time("created", event.CreatedAt))

	status, err := h.dispatch(c, event)
	h.metrics.IncWebhookEvent(event.Type, status)
	if err != nil {
		return respondError(h.logger, err, "Webhook event processing failed",
			zap.String("type", event.Type),
			zap.String("id", event.ID))
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func (h *WebhookHandler) dispatch(c echo.Context, event *entity.WebhookEvent) (string, error) {
	switch {
	case event.Type == "checkout.session.completed":
		return h.handleCheckoutCompleted(c, event)

	case strings.HasPrefix(event.Type, "price."), strings.HasPrefix(event.Type, "product."):
		h.catalog.Invalidate()
		return webhookProcessed, nil

	case strings.HasPrefix(event.Type, "customer.subscription."):
		h.logger.Info("Subscription event",
			zap.String("type", event.Type),
			zap.String("subscription_id", event.SubscriptionID),
			zap.String("customer_id", event.CustomerID),
			zap.String("status", event.Status))
		return webhookProcessed, nil

	case strings.HasPrefix(event.Type, "invoice."):
		h.logger.Info("Invoice event",
			zap.String("type", event.Type),
			zap.String("customer_id", event.CustomerID),
			zap.String("subscription_id", event.SubscriptionID),
			zap.String("status", event.Status))
		return webhookProcessed, nil
	}

	h.logger.Debug("Unhandled event type", zap.String("type", event.Type))
	return webhookIgnored, nil
}

// handleCheckoutCompleted links the checkout customer to the user named in client_reference_id
// when the user has no mapping yet.
func (h *WebhookHandler) handleCheckoutCompleted(c echo.Context, event *entity.WebhookEvent) (string, error) {
	if event.CustomerID == "" || event.ClientReferenceID == "" {
		h.logger.Info("Checkout completed without customer or client reference",
			zap.String("session_id", event.ID),
			zap.String("customer_id", event.CustomerID))
		return webhookIgnored, nil
	}

	linked, err := h.customers.LinkCheckoutCustomer(c.Request().Context(), event.ClientReferenceID, event.CustomerID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrCustomerAlreadyMapped) || errors.Is(err, domainErrors.ErrInvalidIdentity) {
			h.logger.Warn("Checkout customer not linked",
				zap.String("user_id", event.ClientReferenceID),
				zap.String("customer_id", event.CustomerID),
				zap.Error(err))
			return webhookIgnored, nil
		}
		return webhookFailed, err
	}

	h.logger.Info("Checkout session completed",
		zap.String("user_id", event.ClientReferenceID),
		zap.String("customer_id", event.CustomerID),
		zap.Bool("mapping_created", linked))
	return webhookProcessed, nil
}

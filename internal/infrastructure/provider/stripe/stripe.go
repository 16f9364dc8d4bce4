// Package stripe implements the billing directory and checkout gateway on stripe-go.
package stripe

import (
	"errors"
	"fmt"
	"net/http"

	stripego "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"go.uber.org/zap"
)

// Config holds the Stripe credentials.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the API base URL (stripe-mock, tests). Empty means api.stripe.com.
	APIURL string
	// MaxNetworkRetries is passed to the SDK backend; 0 disables retries
	MaxNetworkRetries int64
}

// StripeProvider talks to the Stripe API through a private client so several
// keys can coexist in one process.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeProvider creates a new Stripe provider
func NewStripeProvider(cfg Config, logger *zap.Logger) *StripeProvider {
	backendConfig := &stripego.BackendConfig{
		MaxNetworkRetries: stripego.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     logger.Sugar(),
	}
	if cfg.APIURL != "" {
		backendConfig.URL = stripego.String(cfg.APIURL)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendConfig),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, backendConfig),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, backendConfig),
	})

	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

// Directory returns the provider as a billing directory.
func (s *StripeProvider) Directory() *Directory {
	return &Directory{provider: s}
}

// Gateway returns the provider as a checkout gateway.
func (s *StripeProvider) Gateway() *Gateway {
	return &Gateway{provider: s}
}

func isResourceMissing(err error) bool {
	var stripeErr *stripego.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripego.ErrorCodeResourceMissing
}

// providerError maps an SDK error to the domain taxonomy. Invalid requests are
// ErrProviderRejected, everything else is a DirectoryError.
func (s *StripeProvider) providerError(op, customerID string, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		s.logger.Error("StripeProvider: Stripe API error",
			zap.String("operation", op),
			zap.String("customer_id", customerID),
			zap.String("type", string(stripeErr.Type)),
			zap.String("code", string(stripeErr.Code)),
			zap.String("message", stripeErr.Msg),
			zap.String("request_id", stripeErr.RequestID),
			zap.Int("status_code", stripeErr.HTTPStatusCode))

		if stripeErr.Type == stripego.ErrorTypeInvalidRequest && stripeErr.HTTPStatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s: %s", domainErrors.ErrProviderRejected, op, stripeErr.Msg)
		}
	} else {
		s.logger.Error("StripeProvider: request failed",
			zap.String("operation", op),
			zap.String("customer_id", customerID),
			zap.Error(err))
	}
	return domainErrors.NewDirectoryError(op, customerID, err)
}

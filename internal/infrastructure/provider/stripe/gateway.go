package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"github.com/wekeepgrowing/billing-identity/internal/domain/provider"
	"go.uber.org/zap"
)

// Gateway implements provider.CheckoutGateway on Checkout, Billing Portal,
// Subscriptions and Prices.
type Gateway struct {
	provider *StripeProvider
}

var _ provider.CheckoutGateway = (*Gateway)(nil)

// CreateSubscriptionCheckout opens a subscription-mode checkout for an existing customer.
func (g *Gateway) CreateSubscriptionCheckout(ctx context.Context, req provider.SubscriptionCheckoutRequest) (*entity.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{
		Params:   stripego.Params{Context: ctx},
		Mode:     stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		Customer: stripego.String(req.CustomerID),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				Price:    stripego.String(req.PriceID),
				Quantity: stripego.Int64(1),
			},
		},
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripego.String(req.ClientReferenceID)
	}

	session, err := g.provider.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, g.provider.providerError("create checkout session", req.CustomerID, err)
	}
	return &entity.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CreateDonationCheckout opens a one-off payment with inline price data.
func (g *Gateway) CreateDonationCheckout(ctx context.Context, req provider.DonationCheckoutRequest) (*entity.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{
		Params:             stripego.Params{Context: ctx},
		Mode:               stripego.String(string(stripego.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripego.String(strings.ToLower(req.Currency)),
					UnitAmount: stripego.Int64(req.AmountMinor),
					ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripego.String(req.ProductName),
					},
				},
				Quantity: stripego.Int64(1),
			},
		},
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(req.CustomerEmail)
	}

	session, err := g.provider.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, g.provider.providerError("create donation session", "", err)
	}
	return &entity.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession returns the billing portal URL for the customer.
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	session, err := g.provider.api.BillingPortalSessions.New(&stripego.BillingPortalSessionParams{
		Params:    stripego.Params{Context: ctx},
		Customer:  stripego.String(customerID),
		ReturnURL: stripego.String(returnURL),
	})
	if err != nil {
		return "", g.provider.providerError("create portal session", customerID, err)
	}
	return session.URL, nil
}

// ActiveSubscription returns the first active or trialing subscription, or nil.
func (g *Gateway) ActiveSubscription(ctx context.Context, customerID string) (*entity.Subscription, error) {
	params := &stripego.SubscriptionListParams{
		ListParams: stripego.ListParams{Context: ctx},
		Customer:   stripego.String(customerID),
		Status:     stripego.String("all"),
	}
	// Expand only up to price level (4 levels max)
	params.AddExpand("data.items.data.price")

	iter := g.provider.api.Subscriptions.List(params)
	var active *stripego.Subscription
	for iter.Next() {
		sub := iter.Subscription()
		if sub.Status == stripego.SubscriptionStatusActive || sub.Status == stripego.SubscriptionStatusTrialing {
			active = sub
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, g.provider.providerError("list subscriptions", customerID, err)
	}
	if active == nil {
		return nil, nil
	}

	g.loadProducts(ctx, active)
	return toSubscription(active), nil
}

// ChangeSubscriptionPrice swaps the item's price and prorates the difference.
func (g *Gateway) ChangeSubscriptionPrice(ctx context.Context, subscriptionID, itemID, newPriceID string) (*entity.Subscription, error) {
	params := &stripego.SubscriptionParams{
		Params: stripego.Params{Context: ctx},
		Items: []*stripego.SubscriptionItemsParams{
			{
				ID:    stripego.String(itemID),
				Price: stripego.String(newPriceID),
			},
		},
		ProrationBehavior: stripego.String("create_prorations"),
	}
	params.AddExpand("items.data.price")

	updated, err := g.provider.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, g.provider.providerError("update subscription", "", err)
	}

	g.loadProducts(ctx, updated)
	return toSubscription(updated), nil
}

// loadProducts replaces product references on subscription items with full products.
// Failures only lose the product name.
func (g *Gateway) loadProducts(ctx context.Context, sub *stripego.Subscription) {
	if sub.Items == nil {
		return
	}
	for _, item := range sub.Items.Data {
		if item.Price == nil || item.Price.Product == nil || item.Price.Product.ID == "" || item.Price.Product.Name != "" {
			continue
		}
		prod, err := g.provider.api.Products.Get(item.Price.Product.ID, &stripego.ProductParams{
			Params: stripego.Params{Context: ctx},
		})
		if err != nil {
			g.provider.logger.Warn("StripeProvider: failed to fetch product details",
				zap.String("product_id", item.Price.Product.ID),
				zap.Error(err))
			continue
		}
		item.Price.Product = prod
	}
}

// ListRecurringPrices lists active recurring prices with their products expanded.
func (g *Gateway) ListRecurringPrices(ctx context.Context) ([]entity.Plan, error) {
	params := &stripego.PriceListParams{
		ListParams: stripego.ListParams{Context: ctx, Limit: stripego.Int64(100)},
		Active:     stripego.Bool(true),
		Type:       stripego.String(string(stripego.PriceTypeRecurring)),
	}
	params.AddExpand("data.product")

	iter := g.provider.api.Prices.List(params)
	var plans []entity.Plan
	for iter.Next() {
		price := iter.Price()
		// archived products keep their prices active
		if price.Product != nil && price.Product.Name != "" && !price.Product.Active {
			continue
		}
		plans = append(plans, toPlan(price))
	}
	if err := iter.Err(); err != nil {
		return nil, g.provider.providerError("list prices", "", err)
	}
	return plans, nil
}

// ParseWebhook verifies the Stripe-Signature header and flattens the event.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (*entity.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.provider.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidWebhookSignature, err)
	}

	out := &entity.WebhookEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		CreatedAt: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return out, nil
	}

	switch {
	case strings.HasPrefix(out.Type, "checkout.session."):
		var session stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.ClientReferenceID = session.ClientReferenceID
		out.Status = string(session.Status)
		if session.Customer != nil {
			out.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			out.SubscriptionID = session.Subscription.ID
		}
	case strings.HasPrefix(out.Type, "customer.subscription."):
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.SubscriptionID = sub.ID
		out.Status = string(sub.Status)
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
	case strings.HasPrefix(out.Type, "invoice."):
		var invoice stripego.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		out.Status = string(invoice.Status)
		if invoice.Customer != nil {
			out.CustomerID = invoice.Customer.ID
		}
		if invoice.Subscription != nil {
			out.SubscriptionID = invoice.Subscription.ID
		}
	}
	return out, nil
}

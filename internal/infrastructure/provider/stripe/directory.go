package stripe

import (
	"context"
	"fmt"

	stripego "github.com/stripe/stripe-go/v79"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"github.com/wekeepgrowing/billing-identity/internal/domain/provider"
	"go.uber.org/zap"
)

// Directory implements provider.BillingDirectory on the Customers API.
type Directory struct {
	provider *StripeProvider
}

var _ provider.BillingDirectory = (*Directory)(nil)

// FindByEmail returns the newest customer with this email, or nil.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*entity.CustomerFields, error) {
	customers, err := d.listByEmail(ctx, email, 1)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return &customers[0], nil
}

// ListByEmail returns one page of customers, newest first as Stripe orders them.
func (d *Directory) ListByEmail(ctx context.Context, email string, limit int) ([]entity.CustomerFields, error) {
	return d.listByEmail(ctx, email, limit)
}

func (d *Directory) listByEmail(ctx context.Context, email string, limit int) ([]entity.CustomerFields, error) {
	params := &stripego.CustomerListParams{
		ListParams: stripego.ListParams{
			Context: ctx,
			Limit:   stripego.Int64(int64(limit)),
			Single:  true,
		},
		Email: stripego.String(email),
	}

	iter := d.provider.api.Customers.List(params)
	customers := make([]entity.CustomerFields, 0, limit)
	for iter.Next() {
		c := iter.Customer()
		if c.Deleted {
			continue
		}
		customers = append(customers, toCustomerFields(c))
	}
	if err := iter.Err(); err != nil {
		return nil, d.provider.providerError("list customers", "", err)
	}
	return customers, nil
}

// RetrieveByID returns the active customer or its deleted tombstone.
// An unknown id is ErrCustomerNotFound.
func (d *Directory) RetrieveByID(ctx context.Context, customerID string) (entity.BillingCustomer, error) {
	c, err := d.provider.api.Customers.Get(customerID, &stripego.CustomerParams{
		Params: stripego.Params{Context: ctx},
	})
	if err != nil {
		if isResourceMissing(err) {
			return entity.BillingCustomer{}, fmt.Errorf("%w: %s", domainErrors.ErrCustomerNotFound, customerID)
		}
		return entity.BillingCustomer{}, d.provider.providerError("retrieve customer", customerID, err)
	}
	if c.Deleted {
		return entity.DeletedCustomer(c.ID), nil
	}
	return entity.ActiveCustomer(toCustomerFields(c)), nil
}

// Create creates a customer.
func (d *Directory) Create(ctx context.Context, params provider.CreateCustomerParams) (entity.CustomerFields, error) {
	p := &stripego.CustomerParams{
		Params:   stripego.Params{Context: ctx},
		Email:    stripego.String(params.Email),
		Metadata: params.Metadata,
	}
	if params.Name != "" {
		p.Name = stripego.String(params.Name)
	}
	if params.Phone != "" {
		p.Phone = stripego.String(params.Phone)
	}
	if params.Address != nil {
		p.Address = toAddressParams(params.Address)
	}

	c, err := d.provider.api.Customers.New(p)
	if err != nil {
		return entity.CustomerFields{}, d.provider.providerError("create customer", "", err)
	}

	d.provider.logger.Info("StripeProvider: customer created",
		zap.String("customer_id", c.ID),
		zap.String("user_id", params.Metadata[entity.MetadataUserID]))
	return toCustomerFields(c), nil
}

// UpdateMetadata sets the given metadata keys on the customer.
func (d *Directory) UpdateMetadata(ctx context.Context, customerID string, metadata map[string]string) (entity.CustomerFields, error) {
	c, err := d.provider.api.Customers.Update(customerID, &stripego.CustomerParams{
		Params:   stripego.Params{Context: ctx},
		Metadata: metadata,
	})
	if err != nil {
		return entity.CustomerFields{}, d.provider.providerError("update customer metadata", customerID, err)
	}
	return toCustomerFields(c), nil
}

// Delete deletes the customer.
func (d *Directory) Delete(ctx context.Context, customerID string) (provider.DeletionConfirmation, error) {
	c, err := d.provider.api.Customers.Del(customerID, &stripego.CustomerParams{
		Params: stripego.Params{Context: ctx},
	})
	if err != nil {
		if isResourceMissing(err) {
			return provider.DeletionConfirmation{}, fmt.Errorf("%w: %s", domainErrors.ErrCustomerNotFound, customerID)
		}
		return provider.DeletionConfirmation{}, d.provider.providerError("delete customer", customerID, err)
	}
	return provider.DeletionConfirmation{ID: c.ID, Deleted: c.Deleted}, nil
}

// HasSubscriptions reports whether the customer has any subscription, in any status.
func (d *Directory) HasSubscriptions(ctx context.Context, customerID string) (bool, error) {
	iter := d.provider.api.Subscriptions.List(&stripego.SubscriptionListParams{
		ListParams: presenceListParams(ctx),
		Customer:   stripego.String(customerID),
		Status:     stripego.String("all"),
	})
	found := iter.Next()
	if err := iter.Err(); err != nil {
		return false, d.provider.providerError("list subscriptions", customerID, err)
	}
	return found, nil
}

// HasPaymentMethods reports whether the customer has a saved payment method.
func (d *Directory) HasPaymentMethods(ctx context.Context, customerID string) (bool, error) {
	iter := d.provider.api.PaymentMethods.List(&stripego.PaymentMethodListParams{
		ListParams: presenceListParams(ctx),
		Customer:   stripego.String(customerID),
	})
	found := iter.Next()
	if err := iter.Err(); err != nil {
		return false, d.provider.providerError("list payment methods", customerID, err)
	}
	return found, nil
}

// HasInvoices reports whether the customer has any invoice.
func (d *Directory) HasInvoices(ctx context.Context, customerID string) (bool, error) {
	iter := d.provider.api.Invoices.List(&stripego.InvoiceListParams{
		ListParams: presenceListParams(ctx),
		Customer:   stripego.String(customerID),
	})
	found := iter.Next()
	if err := iter.Err(); err != nil {
		return false, d.provider.providerError("list invoices", customerID, err)
	}
	return found, nil
}

func presenceListParams(ctx context.Context) stripego.ListParams {
	return stripego.ListParams{
		Context: ctx,
		Limit:   stripego.Int64(1),
		Single:  true,
	}
}

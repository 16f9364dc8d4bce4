package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"github.com/wekeepgrowing/billing-identity/internal/domain/provider"
	"github.com/wekeepgrowing/billing-identity/internal/metrics"
)

func newTestMetrics() metrics.BillingMetrics {
	return metrics.NewBillingMetrics(prometheus.NewRegistry())
}

// fakeDirectory is an in-memory billing directory. Listing is newest first like Stripe.
type fakeDirectory struct {
	mu          sync.Mutex
	customers   map[string]entity.CustomerFields
	deleted     map[string]bool
	facts       map[string]entity.CustomerFacts
	factErr     map[string]error
	retrieveErr map[string]error
	createErr   error
	nextID      int
	clock       time.Time

	creates int
	updates int
	deletes []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		customers:   map[string]entity.CustomerFields{},
		deleted:     map[string]bool{},
		facts:       map[string]entity.CustomerFacts{},
		factErr:     map[string]error{},
		retrieveErr: map[string]error{},
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// seed adds a customer directly, bypassing the Create counter.
func (d *fakeDirectory) seed(fields entity.CustomerFields) entity.CustomerFields {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fields.ID == "" {
		d.nextID++
		fields.ID = fmt.Sprintf("cus_seed_%d", d.nextID)
	}
	if fields.Created.IsZero() {
		d.clock = d.clock.Add(time.Hour)
		fields.Created = d.clock
	}
	d.customers[fields.ID] = fields
	return fields
}

func (d *fakeDirectory) get(id string) entity.CustomerFields {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.customers[id]
}

func (d *fakeDirectory) byEmail(email string) []entity.CustomerFields {
	var out []entity.CustomerFields
	for id, c := range d.customers {
		if c.Email == email && !d.deleted[id] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out
}

func (d *fakeDirectory) FindByEmail(ctx context.Context, email string) (*entity.CustomerFields, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	matches := d.byEmail(email)
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (d *fakeDirectory) ListByEmail(ctx context.Context, email string, limit int) ([]entity.CustomerFields, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	matches := d.byEmail(email)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (d *fakeDirectory) RetrieveByID(ctx context.Context, customerID string) (entity.BillingCustomer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.retrieveErr[customerID]; err != nil {
		return entity.BillingCustomer{}, err
	}
	if d.deleted[customerID] {
		return entity.DeletedCustomer(customerID), nil
	}
	c, ok := d.customers[customerID]
	if !ok {
		return entity.BillingCustomer{}, fmt.Errorf("%w: %s", domainErrors.ErrCustomerNotFound, customerID)
	}
	return entity.ActiveCustomer(c), nil
}

func (d *fakeDirectory) Create(ctx context.Context, params provider.CreateCustomerParams) (entity.CustomerFields, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return entity.CustomerFields{}, d.createErr
	}
	d.nextID++
	d.creates++
	d.clock = d.clock.Add(time.Hour)
	c := entity.CustomerFields{
		ID:       fmt.Sprintf("cus_new_%d", d.nextID),
		Email:    params.Email,
		Name:     params.Name,
		Phone:    params.Phone,
		Address:  params.Address,
		Metadata: params.Metadata,
		Created:  d.clock,
	}
	d.customers[c.ID] = c
	return c, nil
}

func (d *fakeDirectory) UpdateMetadata(ctx context.Context, customerID string, metadata map[string]string) (entity.CustomerFields, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.customers[customerID]
	if !ok {
		return entity.CustomerFields{}, fmt.Errorf("%w: %s", domainErrors.ErrCustomerNotFound, customerID)
	}
	d.updates++
	c.Metadata = metadata
	d.customers[customerID] = c
	return c, nil
}

func (d *fakeDirectory) Delete(ctx context.Context, customerID string) (provider.DeletionConfirmation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted[customerID] = true
	d.deletes = append(d.deletes, customerID)
	return provider.DeletionConfirmation{ID: customerID, Deleted: true}, nil
}

func (d *fakeDirectory) fact(customerID string) (entity.CustomerFacts, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.factErr[customerID]; err != nil {
		return entity.CustomerFacts{}, err
	}
	return d.facts[customerID], nil
}

func (d *fakeDirectory) HasSubscriptions(ctx context.Context, customerID string) (bool, error) {
	f, err := d.fact(customerID)
	return f.HasSubscriptions, err
}

func (d *fakeDirectory) HasPaymentMethods(ctx context.Context, customerID string) (bool, error) {
	f, err := d.fact(customerID)
	return f.HasPaymentMethods, err
}

func (d *fakeDirectory) HasInvoices(ctx context.Context, customerID string) (bool, error) {
	f, err := d.fact(customerID)
	return f.HasInvoices, err
}

// MockBillingDirectory is a mock implementation of BillingDirectory
type MockBillingDirectory struct {
	mock.Mock
}

func (m *MockBillingDirectory) FindByEmail(ctx context.Context, email string) (*entity.CustomerFields, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CustomerFields), args.Error(1)
}

func (m *MockBillingDirectory) ListByEmail(ctx context.Context, email string, limit int) ([]entity.CustomerFields, error) {
	args := m.Called(ctx, email, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.CustomerFields), args.Error(1)
}

func (m *MockBillingDirectory) RetrieveByID(ctx context.Context, customerID string) (entity.BillingCustomer, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(entity.BillingCustomer), args.Error(1)
}

func (m *MockBillingDirectory) Create(ctx context.Context, params provider.CreateCustomerParams) (entity.CustomerFields, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(entity.CustomerFields), args.Error(1)
}

func (m *MockBillingDirectory) UpdateMetadata(ctx context.Context, customerID string, metadata map[string]string) (entity.CustomerFields, error) {
	args := m.Called(ctx, customerID, metadata)
	return args.Get(0).(entity.CustomerFields), args.Error(1)
}

func (m *MockBillingDirectory) Delete(ctx context.Context, customerID string) (provider.DeletionConfirmation, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(provider.DeletionConfirmation), args.Error(1)
}

func (m *MockBillingDirectory) HasSubscriptions(ctx context.Context, customerID string) (bool, error) {
	args := m.Called(ctx, customerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBillingDirectory) HasPaymentMethods(ctx context.Context, customerID string) (bool, error) {
	args := m.Called(ctx, customerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBillingDirectory) HasInvoices(ctx context.Context, customerID string) (bool, error) {
	args := m.Called(ctx, customerID)
	return args.Bool(0), args.Error(1)
}

// MockCustomerMappingRepository is a mock implementation of CustomerMappingRepository
type MockCustomerMappingRepository struct {
	mock.Mock
}

func (m *MockCustomerMappingRepository) GetByUserID(ctx context.Context, userID string) (*entity.CustomerMapping, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CustomerMapping), args.Error(1)
}

func (m *MockCustomerMappingRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*entity.CustomerMapping, error) {
	args := m.Called(ctx, stripeCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CustomerMapping), args.Error(1)
}

func (m *MockCustomerMappingRepository) Upsert(ctx context.Context, userID, stripeCustomerID string) (*entity.CustomerMapping, error) {
	args := m.Called(ctx, userID, stripeCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CustomerMapping), args.Error(1)
}

// MockCheckoutGateway is a mock implementation of CheckoutGateway
type MockCheckoutGateway struct {
	mock.Mock
}

func (m *MockCheckoutGateway) CreateSubscriptionCheckout(ctx context.Context, req provider.SubscriptionCheckoutRequest) (*entity.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CheckoutSession), args.Error(1)
}

func (m *MockCheckoutGateway) CreateDonationCheckout(ctx context.Context, req provider.DonationCheckoutRequest) (*entity.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CheckoutSession), args.Error(1)
}

func (m *MockCheckoutGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *MockCheckoutGateway) ActiveSubscription(ctx context.Context, customerID string) (*entity.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Subscription), args.Error(1)
}

func (m *MockCheckoutGateway) ChangeSubscriptionPrice(ctx context.Context, subscriptionID, itemID, newPriceID string) (*entity.Subscription, error) {
	args := m.Called(ctx, subscriptionID, itemID, newPriceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Subscription), args.Error(1)
}

func (m *MockCheckoutGateway) ListRecurringPrices(ctx context.Context) ([]entity.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Plan), args.Error(1)
}

func (m *MockCheckoutGateway) ParseWebhook(payload []byte, signature string) (*entity.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.WebhookEvent), args.Error(1)
}

// MockEventPublisher records published messages
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

// stubLocker hands out locks immediately unless err is set
type stubLocker struct {
	err      error
	locked   []string
	unlocked int
}

func (l *stubLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked = append(l.locked, key)
	return func() { l.unlocked++ }, nil
}

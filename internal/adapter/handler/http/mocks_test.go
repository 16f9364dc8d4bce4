package http

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	"github.com/wekeepgrowing/billing-identity/internal/usecase"
)

type MockBillingUsecase struct {
	mock.Mock
}

func (m *MockBillingUsecase) CreateSubscriptionCheckout(ctx context.Context, userID, email, priceID string) (*entity.CheckoutSession, entity.ReconcileResult, error) {
	args := m.Called(ctx, userID, email, priceID)
	session, _ := args.Get(0).(*entity.CheckoutSession)
	return session, args.Get(1).(entity.ReconcileResult), args.Error(2)
}

func (m *MockBillingUsecase) CreateDonationCheckout(ctx context.Context, amount decimal.Decimal, currency, email string) (*entity.CheckoutSession, error) {
	args := m.Called(ctx, amount, currency, email)
	session, _ := args.Get(0).(*entity.CheckoutSession)
	return session, args.Error(1)
}

func (m *MockBillingUsecase) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockBillingUsecase) CurrentSubscription(ctx context.Context, userID string) (*entity.Subscription, error) {
	args := m.Called(ctx, userID)
	subscription, _ := args.Get(0).(*entity.Subscription)
	return subscription, args.Error(1)
}

func (m *MockBillingUsecase) ModifySubscription(ctx context.Context, userID, newPriceID string) (*entity.Subscription, error) {
	args := m.Called(ctx, userID, newPriceID)
	subscription, _ := args.Get(0).(*entity.Subscription)
	return subscription, args.Error(1)
}

type MockCustomerUsecase struct {
	mock.Mock
}

func (m *MockCustomerUsecase) EnsureCustomerForUser(ctx context.Context, userID, email string) (*entity.CustomerMapping, entity.ReconcileResult, error) {
	args := m.Called(ctx, userID, email)
	mapping, _ := args.Get(0).(*entity.CustomerMapping)
	return mapping, args.Get(1).(entity.ReconcileResult), args.Error(2)
}

func (m *MockCustomerUsecase) DescribeMapping(ctx context.Context, userID string) (*usecase.MappingDescription, error) {
	args := m.Called(ctx, userID)
	description, _ := args.Get(0).(*usecase.MappingDescription)
	return description, args.Error(1)
}

func (m *MockCustomerUsecase) LinkCheckoutCustomer(ctx context.Context, userID, customerID string) (bool, error) {
	args := m.Called(ctx, userID, customerID)
	return args.Bool(0), args.Error(1)
}

type MockPlanUsecase struct {
	mock.Mock
}

func (m *MockPlanUsecase) Plans(ctx context.Context) ([]entity.Plan, error) {
	args := m.Called(ctx)
	plans, _ := args.Get(0).([]entity.Plan)
	return plans, args.Error(1)
}

func (m *MockPlanUsecase) Invalidate() {
	m.Called()
}

type MockAuditUsecase struct {
	mock.Mock
}

func (m *MockAuditUsecase) Analyze(ctx context.Context, email string) (*entity.AuditReport, error) {
	args := m.Called(ctx, email)
	report, _ := args.Get(0).(*entity.AuditReport)
	return report, args.Error(1)
}

func (m *MockAuditUsecase) Delete(ctx context.Context, customerID string) (*entity.DeletionResult, error) {
	args := m.Called(ctx, customerID)
	result, _ := args.Get(0).(*entity.DeletionResult)
	return result, args.Error(1)
}

type MockWebhookVerifier struct {
	mock.Mock
}

func (m *MockWebhookVerifier) ParseWebhook(payload []byte, signature string) (*entity.WebhookEvent, error) {
	args := m.Called(payload, signature)
	event, _ := args.Get(0).(*entity.WebhookEvent)
	return event, args.Error(1)
}

// recordingMetrics keeps the webhook outcomes; the other observations are dropped.
type recordingMetrics struct {
	mu       sync.Mutex
	webhooks []string
}

func (m *recordingMetrics) ObserveReconciliation(string, error, time.Duration) {}
func (m *recordingMetrics) IncMappingWrite(string) {}
func (m *recordingMetrics) IncAuditRecommendation(string) {}
func (m *recordingMetrics) IncAuditDeletion(string) {}
func (m *recordingMetrics) IncPlanCatalogLoad(string) {}

func (m *recordingMetrics) IncWebhookEvent(eventType, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, eventType+":"+status)
}

func (m *recordingMetrics) webhookEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.webhooks...)
}

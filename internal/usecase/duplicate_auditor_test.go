package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"go.uber.org/zap"
)

func newTestAuditor(dir *fakeDirectory) *DuplicateAuditor {
	return NewDuplicateAuditor(dir, AuditorOptions{}, newTestMetrics(), zap.NewNop())
}

func TestAnalyze_SoleRecordIsKept(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed(entity.CustomerFields{ID: "cus_only", Email: testEmail})
	auditor := newTestAuditor(dir)

	report, err := auditor.Analyze(context.Background(), testEmail)
	require.NoError(t, err)

	require.Len(t, report.Customers, 1)
	assert.Equal(t, entity.RecommendationKeep, report.Customers[0].Recommendation)
	assert.Equal(t, entity.ClassificationGuest, report.Customers[0].Classification)
	assert.Equal(t, entity.AuditSummary{Total: 1, ToKeep: 1}, report.Summary)
	assert.Empty(t, report.DeletionCandidates())
	assert.False(t, report.Truncated)
}

func TestAnalyze_Dedup(t *testing.T) {
	dir := newFakeDirectory()
	a := dir.seed(entity.CustomerFields{ID: "cus_A", Email: testEmail, Metadata: properMetadata(testUserID)})
	b := dir.seed(entity.CustomerFields{ID: "cus_B", Email: testEmail})
	dir.facts[a.ID] = entity.CustomerFacts{HasSubscriptions: true}
	auditor := newTestAuditor(dir)

	report, err := auditor.Analyze(context.Background(), testEmail)
	require.NoError(t, err)

	require.Len(t, report.Customers, 2)
	assert.Equal(t, b.ID, report.Customers[0].CustomerID, "newest first")
	assert.Equal(t, entity.RecommendationDelete, report.Customers[0].Recommendation)
	assert.Equal(t, a.ID, report.Customers[1].CustomerID)
	assert.Equal(t, entity.RecommendationKeep, report.Customers[1].Recommendation)
	assert.True(t, report.Customers[1].Facts.HasSubscriptions)
	assert.Equal(t, testUserID, report.Customers[1].UserID)

	assert.Equal(t, entity.AuditSummary{Total: 2, ToKeep: 1, ToDelete: 1}, report.Summary)
	assert.Equal(t, []string{b.ID}, report.DeletionCandidates())
	assert.Empty(t, dir.deletes, "analysis never deletes")
}

func TestAnalyze_NoMatches(t *testing.T) {
	auditor := newTestAuditor(newFakeDirectory())

	report, err := auditor.Analyze(context.Background(), testEmail)
	require.NoError(t, err)

	assert.Empty(t, report.Customers)
	assert.Equal(t, entity.AuditSummary{}, report.Summary)
}

func TestAnalyze_ErrorRowsAreIsolated(t *testing.T) {
	dir := newFakeDirectory()
	a := dir.seed(entity.CustomerFields{ID: "cus_A", Email: testEmail})
	b := dir.seed(entity.CustomerFields{ID: "cus_B", Email: testEmail})
	c := dir.seed(entity.CustomerFields{ID: "cus_C", Email: testEmail})
	dir.factErr[b.ID] = domainErrors.NewDirectoryError("list invoices", b.ID, errors.New("rate limited"))
	dir.facts[a.ID] = entity.CustomerFacts{HasInvoices: true}
	auditor := newTestAuditor(dir)

	report, err := auditor.Analyze(context.Background(), testEmail)
	require.NoError(t, err)

	require.Len(t, report.Customers, 3)
	assert.Equal(t, c.ID, report.Customers[0].CustomerID)
	assert.Equal(t, entity.RecommendationDelete, report.Customers[0].Recommendation)
	assert.Equal(t, a.ID, report.Customers[1].CustomerID)
	assert.Equal(t, entity.RecommendationKeep, report.Customers[1].Recommendation)
	assert.Equal(t, b.ID, report.Customers[2].CustomerID, "failed rows come last")
	assert.Equal(t, entity.RecommendationError, report.Customers[2].Recommendation)
	assert.Contains(t, report.Customers[2].Error, "rate limited")

	assert.Equal(t, entity.AuditSummary{Total: 3, ToKeep: 1, ToDelete: 1, Errors: 1}, report.Summary)
}

func TestAnalyze_Truncated(t *testing.T) {
	dir := newFakeDirectory()
	for i := 0; i < 3; i++ {
		dir.seed(entity.CustomerFields{ID: fmt.Sprintf("cus_%d", i), Email: testEmail})
	}
	auditor := NewDuplicateAuditor(dir, AuditorOptions{PageLimit: 2, Concurrency: 1}, newTestMetrics(), zap.NewNop())

	report, err := auditor.Analyze(context.Background(), testEmail)
	require.NoError(t, err)

	assert.Len(t, report.Customers, 2)
	assert.True(t, report.Truncated)
	assert.Equal(t, 2, report.PageLimit)
}

func TestAnalyze_Errors(t *testing.T) {
	t.Run("empty email", func(t *testing.T) {
		dir := new(MockBillingDirectory)
		auditor := NewDuplicateAuditor(dir, AuditorOptions{}, newTestMetrics(), zap.NewNop())

		_, err := auditor.Analyze(context.Background(), "  ")
		assert.ErrorIs(t, err, domainErrors.ErrInvalidIdentity)
		dir.AssertNotCalled(t, "ListByEmail", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("listing failure aborts", func(t *testing.T) {
		dir := new(MockBillingDirectory)
		dir.On("ListByEmail", mock.Anything, testEmail, 100).
			Return(nil, domainErrors.NewDirectoryError("list", "", errors.New("timeout")))
		auditor := NewDuplicateAuditor(dir, AuditorOptions{PageLimit: 500}, newTestMetrics(), zap.NewNop())

		report, err := auditor.Analyze(context.Background(), testEmail)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, domainErrors.ErrDirectoryUnavailable)
		dir.AssertExpectations(t)
	})
}

func TestDelete_RefusesCustomerWithHistory(t *testing.T) {
	tests := []struct {
		name    string
		facts   entity.CustomerFacts
		message string
	}{
		{"subscriptions", entity.CustomerFacts{HasSubscriptions: true}, "has subscriptions"},
		{"payment methods", entity.CustomerFacts{HasPaymentMethods: true}, "has payment methods"},
		{"invoices", entity.CustomerFacts{HasInvoices: true}, "has invoices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newFakeDirectory()
			c := dir.seed(entity.CustomerFields{ID: "cus_A", Email: testEmail})
			dir.facts[c.ID] = tt.facts
			auditor := newTestAuditor(dir)

			result, err := auditor.Delete(context.Background(), c.ID)

			assert.Nil(t, result)
			unsafe, ok := IsUnsafeDeletion(err)
			require.True(t, ok)
			assert.Equal(t, c.ID, unsafe.CustomerID)
			assert.Equal(t, tt.facts, unsafe.Facts)
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, dir.deletes, "no delete call reaches the provider")
		})
	}
}

func TestDelete_FreshFactsAreChecked(t *testing.T) {
	dir := newFakeDirectory()
	c := dir.seed(entity.CustomerFields{ID: "cus_A", Email: testEmail})
	dir.seed(entity.CustomerFields{ID: "cus_B", Email: testEmail, Created: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)})
	auditor := newTestAuditor(dir)

	report, err := auditor.Analyze(context.Background(), testEmail)
	require.NoError(t, err)
	require.Contains(t, report.DeletionCandidates(), c.ID)

	// an invoice appears between analysis and deletion
	dir.facts[c.ID] = entity.CustomerFacts{HasInvoices: true}

	_, err = auditor.Delete(context.Background(), c.ID)
	_, ok := IsUnsafeDeletion(err)
	assert.True(t, ok)
	assert.Empty(t, dir.deletes)
}

func TestDelete_Success(t *testing.T) {
	dir := newFakeDirectory()
	c := dir.seed(entity.CustomerFields{ID: "cus_A", Email: testEmail})
	auditor := newTestAuditor(dir)

	result, err := auditor.Delete(context.Background(), " "+c.ID+" ")
	require.NoError(t, err)

	assert.Equal(t, &entity.DeletionResult{CustomerID: c.ID, Deleted: true}, result)
	assert.Equal(t, []string{c.ID}, dir.deletes)
}

func TestDelete_Errors(t *testing.T) {
	t.Run("empty id", func(t *testing.T) {
		_, err := newTestAuditor(newFakeDirectory()).Delete(context.Background(), "")
		assert.ErrorIs(t, err, domainErrors.ErrInvalidIdentity)
	})

	t.Run("unknown customer", func(t *testing.T) {
		_, err := newTestAuditor(newFakeDirectory()).Delete(context.Background(), "cus_missing")
		assert.ErrorIs(t, err, domainErrors.ErrCustomerNotFound)
	})

	t.Run("already deleted", func(t *testing.T) {
		dir := newFakeDirectory()
		dir.deleted["cus_gone"] = true

		_, err := newTestAuditor(dir).Delete(context.Background(), "cus_gone")
		assert.ErrorIs(t, err, domainErrors.ErrCustomerNotFound)
		assert.Empty(t, dir.deletes)
	})

	t.Run("fact lookup failure", func(t *testing.T) {
		dir := newFakeDirectory()
		c := dir.seed(entity.CustomerFields{ID: "cus_A", Email: testEmail})
		dir.factErr[c.ID] = domainErrors.NewDirectoryError("list subscriptions", c.ID, errors.New("timeout"))

		_, err := newTestAuditor(dir).Delete(context.Background(), c.ID)
		assert.ErrorIs(t, err, domainErrors.ErrDirectoryUnavailable)
		_, unsafe := IsUnsafeDeletion(err)
		assert.False(t, unsafe)
		assert.Empty(t, dir.deletes)
	})
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
)

type fakeAuditor struct {
	report    *entity.AuditReport
	deleteErr error
	deleted   []string
}

func (f *fakeAuditor) Analyze(_ context.Context, email string) (*entity.AuditReport, error) {
	if f.report == nil {
		return nil, domainErrors.ErrDirectoryUnavailable
	}
	report := *f.report
	report.Email = email
	return &report, nil
}

func (f *fakeAuditor) Delete(_ context.Context, customerID string) (*entity.DeletionResult, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, customerID)
	return &entity.DeletionResult{CustomerID: customerID, Deleted: true}, nil
}

func run(t *testing.T, auditor *fakeAuditor, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cleaned := false
	cmd := newRootCmd(func() (auditService, func(), error) {
		return auditor, func() { cleaned = true }, nil
	}, &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	assert.True(t, cleaned, "cleanup runs after the command")
	return out.String(), err
}

func sampleReport() *entity.AuditReport {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &entity.AuditReport{
		PageLimit: 100,
		Customers: []entity.CustomerReport{
			{
				CustomerID:     "cus_paid",
				Created:        created,
				Name:           "Jane",
				UserID:         "6f1c0c2e-0000-4000-8000-000000000001",
				Classification: entity.ClassificationProper,
				Facts:          entity.CustomerFacts{HasSubscriptions: true, HasInvoices: true},
				Recommendation: entity.RecommendationKeep,
			},
			{
				CustomerID:     "cus_dup",
				Created:        created.Add(time.Hour),
				Classification: entity.ClassificationGuest,
				Recommendation: entity.RecommendationDelete,
			},
			{
				CustomerID:     "cus_broken",
				Classification: entity.ClassificationGuest,
				Recommendation: entity.RecommendationError,
				Error:          "billing directory unavailable",
			},
		},
		Summary: entity.AuditSummary{Total: 3, ToKeep: 1, ToDelete: 1, Errors: 1},
	}
}

func TestAnalyzeCmd(t *testing.T) {
	output, err := run(t, &fakeAuditor{report: sampleReport()}, "analyze", "jane@example.com")
	require.NoError(t, err)

	assert.Contains(t, output, "Customers for jane@example.com: 3")
	assert.Contains(t, output, "cus_paid")
	assert.Contains(t, output, "2024-03-01")
	assert.Contains(t, output, "KEEP")
	assert.Contains(t, output, "Error inspecting cus_broken: billing directory unavailable")
	assert.Contains(t, output, "Keep: 1  Delete: 1  Errors: 1")
	assert.Contains(t, output, "customer-audit delete cus_dup")
	assert.NotContains(t, output, "delete cus_paid")
	assert.NotContains(t, output, "Warning")
}

func TestAnalyzeCmd_Truncated(t *testing.T) {
	report := sampleReport()
	report.Truncated = true

	output, err := run(t, &fakeAuditor{report: report}, "analyze", "jane@example.com")
	require.NoError(t, err)
	assert.Contains(t, output, "page limit of 100")
}

func TestAnalyzeCmd_NoCustomers(t *testing.T) {
	output, err := run(t, &fakeAuditor{report: &entity.AuditReport{PageLimit: 100}}, "analyze", "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Customers for nobody@example.com: 0\n", output)
}

func TestAnalyzeCmd_JSON(t *testing.T) {
	output, err := run(t, &fakeAuditor{report: sampleReport()}, "analyze", "jane@example.com", "--json")
	require.NoError(t, err)

	var report entity.AuditReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, "jane@example.com", report.Email)
	assert.Equal(t, []string{"cus_dup"}, report.DeletionCandidates())
}

func TestAnalyzeCmd_Failure(t *testing.T) {
	_, err := run(t, &fakeAuditor{}, "analyze", "jane@example.com")
	assert.ErrorIs(t, err, domainErrors.ErrDirectoryUnavailable)
}

func TestDeleteCmd(t *testing.T) {
	auditor := &fakeAuditor{}
	output, err := run(t, auditor, "delete", "cus_dup")

	require.NoError(t, err)
	assert.Equal(t, "Deleted cus_dup\n", output)
	assert.Equal(t, []string{"cus_dup"}, auditor.deleted)
}

func TestDeleteCmd_Refused(t *testing.T) {
	auditor := &fakeAuditor{deleteErr: &domainErrors.UnsafeDeletionError{
		CustomerID: "cus_paid",
		Facts:      entity.CustomerFacts{HasPaymentMethods: true, HasInvoices: true},
	}}

	output, err := run(t, auditor, "delete", "cus_paid")

	var unsafe *domainErrors.UnsafeDeletionError
	require.True(t, errors.As(err, &unsafe), "exit status is non-zero")
	assert.Equal(t, "Refused: cus_paid still has payment methods, invoices\n", output)
	assert.Empty(t, auditor.deleted)
}

func TestDeleteCmd_RefusedJSON(t *testing.T) {
	auditor := &fakeAuditor{deleteErr: &domainErrors.UnsafeDeletionError{
		CustomerID: "cus_paid",
		Facts:      entity.CustomerFacts{HasSubscriptions: true},
	}}

	output, err := run(t, auditor, "delete", "cus_paid", "--json")
	require.Error(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &body))
	assert.Equal(t, false, body["deleted"])
	assert.Equal(t, true, body["facts"].(map[string]interface{})["has_subscriptions"])
}

func TestCommands_RequireOneArgument(t *testing.T) {
	for _, args := range [][]string{{"analyze"}, {"delete"}, {"delete", "a", "b"}} {
		var out bytes.Buffer
		cmd := newRootCmd(func() (auditService, func(), error) {
			t.Fatal("factory must not run")
			return nil, nil, nil
		}, &out)
		cmd.SetArgs(args)
		assert.Error(t, cmd.Execute(), args)
	}
}

func TestCommands_FactoryError(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(func() (auditService, func(), error) {
		return nil, nil, errors.New("service.stripe_secret_key is required")
	}, &out)
	cmd.SetArgs([]string{"analyze", "jane@example.com"})

	err := cmd.Execute()
	assert.EqualError(t, err, "service.stripe_secret_key is required")
}

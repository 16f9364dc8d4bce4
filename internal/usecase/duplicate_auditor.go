package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"github.com/wekeepgrowing/billing-identity/internal/domain/provider"
	"github.com/wekeepgrowing/billing-identity/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAuditPageLimit   = 100
	defaultAuditConcurrency = 4
)

// AuditorOptions tunes the duplicate auditor.
type AuditorOptions struct {
	// PageLimit is the single-page listing size (provider maximum 100)
	PageLimit int
	// Concurrency bounds the per-customer fact lookups running at once
	Concurrency int
}

// DuplicateAuditor finds redundant customers for an email and deletes them on request.
// Analyze never mutates anything.
type DuplicateAuditor struct {
	directory   provider.BillingDirectory
	pageLimit   int
	concurrency int
	metrics     metrics.BillingMetrics
	logger      *zap.Logger
}

// NewDuplicateAuditor creates a new duplicate auditor
func NewDuplicateAuditor(
	directory provider.BillingDirectory,
	opts AuditorOptions,
	billingMetrics metrics.BillingMetrics,
	logger *zap.Logger,
) *DuplicateAuditor {
	if opts.PageLimit <= 0 || opts.PageLimit > defaultAuditPageLimit {
		opts.PageLimit = defaultAuditPageLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultAuditConcurrency
	}
	return &DuplicateAuditor{
		directory:   directory,
		pageLimit:   opts.PageLimit,
		concurrency: opts.Concurrency,
		metrics:     billingMetrics,
		logger:      logger,
	}
}

// Analyze reports every customer sharing email with a keep/delete recommendation.
// A failure to list aborts the audit; a failure on one customer only marks that row ERROR.
func (a *DuplicateAuditor) Analyze(ctx context.Context, email string) (*entity.AuditReport, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, domainErrors.ErrInvalidIdentity
	}

	customers, err := a.directory.ListByEmail(ctx, email, a.pageLimit)
	if err != nil {
		return nil, fmt.Errorf("list customers by email: %w", err)
	}

	sole := len(customers) == 1
	reports := make([]entity.CustomerReport, len(customers))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i := range customers {
		i := i
		g.Go(func() error {
			reports[i] = a.inspect(ctx, customers[i], sole)
			return nil
		})
	}
	_ = g.Wait()

	report := &entity.AuditReport{
		Email:     email,
		PageLimit: a.pageLimit,
		Truncated: len(customers) >= a.pageLimit,
		Customers: orderReports(reports),
		Summary:   entity.AuditSummary{Total: len(customers)},
	}
	for _, c := range report.Customers {
		switch c.Recommendation {
		case entity.RecommendationKeep:
			report.Summary.ToKeep++
		case entity.RecommendationDelete:
			report.Summary.ToDelete++
		case entity.RecommendationError:
			report.Summary.Errors++
		}
		a.metrics.IncAuditRecommendation(string(c.Recommendation))
	}

	a.logger.Info("DuplicateAuditor: analysis completed",
		zap.String("email", email),
		zap.Int("total", report.Summary.Total),
		zap.Int("to_keep", report.Summary.ToKeep),
		zap.Int("to_delete", report.Summary.ToDelete),
		zap.Int("errors", report.Summary.Errors),
		zap.Bool("truncated", report.Truncated))

	return report, nil
}

func (a *DuplicateAuditor) inspect(ctx context.Context, customer entity.CustomerFields, sole bool) entity.CustomerReport {
	report := entity.CustomerReport{
		CustomerID:     customer.ID,
		Email:          customer.Email,
		Name:           customer.Name,
		Created:        customer.Created,
		UserID:         customer.UserID(),
		Classification: ClassifyFields(customer),
	}

	facts, err := a.facts(ctx, customer.ID)
	if err != nil {
		a.logger.Warn("DuplicateAuditor: failed to inspect customer",
			zap.String("customer_id", customer.ID),
			zap.Error(err))
		report.Recommendation = entity.RecommendationError
		report.Error = err.Error()
		return report
	}

	report.Facts = facts
	report.Recommendation = recommend(facts, sole)
	return report
}

// recommend keeps anything with history and never deletes the only customer of an email.
func recommend(facts entity.CustomerFacts, sole bool) entity.Recommendation {
	if facts.Any() || sole {
		return entity.RecommendationKeep
	}
	return entity.RecommendationDelete
}

// orderReports puts inspected customers newest first, followed by failed ones in listing order.
func orderReports(reports []entity.CustomerReport) []entity.CustomerReport {
	ordered := make([]entity.CustomerReport, 0, len(reports))
	var failed []entity.CustomerReport
	for _, r := range reports {
		if r.Recommendation == entity.RecommendationError {
			failed = append(failed, r)
			continue
		}
		ordered = append(ordered, r)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Created.After(ordered[j].Created)
	})
	return append(ordered, failed...)
}

func (a *DuplicateAuditor) facts(ctx context.Context, customerID string) (entity.CustomerFacts, error) {
	var facts entity.CustomerFacts
	var err error

	if facts.HasSubscriptions, err = a.directory.HasSubscriptions(ctx, customerID); err != nil {
		return facts, fmt.Errorf("check subscriptions: %w", err)
	}
	if facts.HasPaymentMethods, err = a.directory.HasPaymentMethods(ctx, customerID); err != nil {
		return facts, fmt.Errorf("check payment methods: %w", err)
	}
	if facts.HasInvoices, err = a.directory.HasInvoices(ctx, customerID); err != nil {
		return facts, fmt.Errorf("check invoices: %w", err)
	}
	return facts, nil
}

// Delete removes a customer only if a fresh look shows no subscriptions,
// payment methods or invoices. Otherwise it returns *UnsafeDeletionError.
func (a *DuplicateAuditor) Delete(ctx context.Context, customerID string) (*entity.DeletionResult, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", domainErrors.ErrInvalidIdentity)
	}

	logger := a.logger.With(zap.String("customer_id", customerID))

	customer, err := a.directory.RetrieveByID(ctx, customerID)
	if err != nil {
		a.metrics.IncAuditDeletion(metrics.DeletionError)
		return nil, fmt.Errorf("retrieve customer: %w", err)
	}
	if customer.IsDeleted() {
		a.metrics.IncAuditDeletion(metrics.DeletionError)
		return nil, fmt.Errorf("%w: %s is already deleted", domainErrors.ErrCustomerNotFound, customerID)
	}

	facts, err := a.facts(ctx, customerID)
	if err != nil {
		a.metrics.IncAuditDeletion(metrics.DeletionError)
		return nil, err
	}
	if facts.Any() {
		a.metrics.IncAuditDeletion(metrics.DeletionRefused)
		logger.Warn("DuplicateAuditor: refusing to delete customer with history",
			zap.Bool("has_subscriptions", facts.HasSubscriptions),
			zap.Bool("has_payment_methods", facts.HasPaymentMethods),
			zap.Bool("has_invoices", facts.HasInvoices))
		return nil, &domainErrors.UnsafeDeletionError{CustomerID: customerID, Facts: facts}
	}

	confirmation, err := a.directory.Delete(ctx, customerID)
	if err != nil {
		a.metrics.IncAuditDeletion(metrics.DeletionError)
		return nil, fmt.Errorf("delete customer: %w", err)
	}

	a.metrics.IncAuditDeletion(metrics.DeletionDeleted)
	logger.Info("DuplicateAuditor: customer deleted", zap.Bool("deleted", confirmation.Deleted))

	return &entity.DeletionResult{CustomerID: confirmation.ID, Deleted: confirmation.Deleted}, nil
}

// IsUnsafeDeletion reports whether err is a refused deletion and returns its details.
func IsUnsafeDeletion(err error) (*domainErrors.UnsafeDeletionError, bool) {
	var unsafe *domainErrors.UnsafeDeletionError
	if errors.As(err, &unsafe) {
		return unsafe, true
	}
	return nil, false
}

package entity

import "time"

// CustomerFacts are the derived, on-demand facts that make a customer worth keeping.
type CustomerFacts struct {
	HasSubscriptions  bool `json:"has_subscriptions"`
	HasPaymentMethods bool `json:"has_payment_methods"`
	HasInvoices       bool `json:"has_invoices"`
}

// Any reports whether at least one fact is true.
func (f CustomerFacts) Any() bool {
	return f.HasSubscriptions || f.HasPaymentMethods || f.HasInvoices
}

// Recommendation is the auditor's verdict for one customer.
type Recommendation string

const (
	RecommendationKeep   Recommendation = "KEEP"
	RecommendationDelete Recommendation = "DELETE"
	RecommendationError  Recommendation = "ERROR"
)

// CustomerReport is one row of an audit.
type CustomerReport struct {
	CustomerID     string         `json:"customer_id"`
	Email          string         `json:"email,omitempty"`
	Name           string         `json:"name,omitempty"`
	Created        time.Time      `json:"created"`
	UserID         string         `json:"user_id,omitempty"`
	Classification Classification `json:"classification"`
	Facts          CustomerFacts  `json:"facts"`
	Recommendation Recommendation `json:"recommendation"`
	Error          string         `json:"error,omitempty"`
}

// AuditSummary counts reports per recommendation.
type AuditSummary struct {
	Total    int `json:"total"`
	ToKeep   int `json:"to_keep"`
	ToDelete int `json:"to_delete"`
	Errors   int `json:"errors"`
}

// AuditReport is the result of analyzing one email.
type AuditReport struct {
	Email     string           `json:"email"`
	PageLimit int              `json:"page_limit"`
	Customers []CustomerReport `json:"customers"`
	Summary   AuditSummary     `json:"summary"`

	// Truncated is set when the listing filled the page; more customers may exist
	Truncated bool `json:"truncated"`
}

// DeletionCandidates returns the ids recommended for deletion in report order.
func (r AuditReport) DeletionCandidates() []string {
	ids := make([]string, 0, r.Summary.ToDelete)
	for _, c := range r.Customers {
		if c.Recommendation == RecommendationDelete {
			ids = append(ids, c.CustomerID)
		}
	}
	return ids
}

// DeletionResult is the provider confirmation of a guarded delete.
type DeletionResult struct {
	CustomerID string `json:"customer_id"`
	Deleted    bool   `json:"deleted"`
}

package entity

// ReconcileAction names the branch EnsureCustomer took.
type ReconcileAction string

const (
	// ActionMatchedByEmail: a proper customer with this email already claims the user
	ActionMatchedByEmail ReconcileAction = "matched_by_email"
	// ActionRepairedMetadata: a proper customer matched by email got its user id metadata rewritten
	ActionRepairedMetadata ReconcileAction = "repaired_metadata"
	// ActionMigratedGuest: a guest record was copied into a new proper customer
	ActionMigratedGuest ReconcileAction = "migrated_guest"
	// ActionCreated: no candidate existed, a fresh customer was created
	ActionCreated ReconcileAction = "created"
	// ActionRecreatedStale: the mapped customer could not be retrieved and was replaced
	ActionRecreatedStale ReconcileAction = "recreated_stale"
	// ActionKeptExisting: the mapped customer is proper and was kept as is
	ActionKeptExisting ReconcileAction = "kept_existing"
)

// ReconcileResult is the outcome of EnsureCustomer.
type ReconcileResult struct {
	CustomerID string          `json:"customer_id"`
	Action     ReconcileAction `json:"action"`
	// MigratedFrom is the guest customer id when Action is ActionMigratedGuest
	MigratedFrom string `json:"migrated_from,omitempty"`
}

// Changed reports whether the result points somewhere other than previousCustomerID.
func (r ReconcileResult) Changed(previousCustomerID string) bool {
	return r.CustomerID != previousCustomerID
}

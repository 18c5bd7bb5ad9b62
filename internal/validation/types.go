package validation

// ReconcileRequest is the optional payload for POST /reconcile.
type ReconcileRequest struct {
	// Async enqueues the run for the worker instead of running inline.
	Async bool `json:"async"`
	// RequestedBy is recorded on the trigger message for traceability.
	RequestedBy string `json:"requested_by" validate:"omitempty,max=120"`
}

package main

// TriggerMessage is the payload sent from the scheduler or the manual
// trigger endpoint via SQS to the worker.
type TriggerMessage struct {
	Trigger       string `json:"trigger"` // "scheduled" or "manual"
	RequestedBy   string `json:"requested_by,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

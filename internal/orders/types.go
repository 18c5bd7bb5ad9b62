package orders

import "time"

// Order statuses mirrored from the order-management system.
const (
	StatusPending   = "pending"
	StatusOnHold    = "on-hold"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Order represents the item stored in the orders DynamoDB table. The order
// store owns these records; this service reads them and requests status
// transitions.
type Order struct {
	OrderID string `dynamodbav:"order_id"` // PK, numeric string
	Status  string `dynamodbav:"status"`
	// XeroInvoiceID is the provider-side invoice identifier, set once when
	// the invoice is raised.
	XeroInvoiceID string `dynamodbav:"xero_invoice_id,omitempty"`
	// XeroInvoiceNumber is the derived WebSales<order_id> key, cached the
	// first time it is needed.
	XeroInvoiceNumber string    `dynamodbav:"xero_invoice_number,omitempty"`
	CreatedAt         time.Time `dynamodbav:"created_at"`
	UpdatedAt         time.Time `dynamodbav:"updated_at"`
	Notes             []string  `dynamodbav:"notes,omitempty"`
}

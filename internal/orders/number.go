package orders

import (
	"regexp"

	"github.com/cockroachdb/errors"
)

// invoiceNumberPrefix is the fixed prefix of locally derived invoice numbers.
const invoiceNumberPrefix = "WebSales"

var invoiceNumberPattern = regexp.MustCompile(`^WebSales([0-9]+)$`)

// ErrInvalidInvoiceNumber indicates a value that does not match the
// WebSales<digits> format.
var ErrInvalidInvoiceNumber = errors.New("invalid invoice number format")

// InvoiceNumber derives the invoice number for an order id. The result
// round-trips through ParseInvoiceNumber.
func InvoiceNumber(orderID string) string {
	return invoiceNumberPrefix + orderID
}

// ParseInvoiceNumber extracts the order id from an invoice number.
// Returns ErrInvalidInvoiceNumber when the value does not match
// WebSales<digits>.
func ParseInvoiceNumber(invoiceNumber string) (string, error) {
	m := invoiceNumberPattern.FindStringSubmatch(invoiceNumber)
	if m == nil {
		return "", errors.Mark(
			errors.Newf("invoice number %q does not match WebSales<order_id>", invoiceNumber),
			ErrInvalidInvoiceNumber,
		)
	}
	return m[1], nil
}

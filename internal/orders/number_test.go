package orders

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestInvoiceNumberRoundTrip(t *testing.T) {
	for _, orderID := range []string{"1", "42", "158270", "007", "999999999999"} {
		n := InvoiceNumber(orderID)
		parsed, err := ParseInvoiceNumber(n)
		require.NoError(t, err, "invoice number %q", n)
		require.Equal(t, orderID, parsed)
	}
}

func TestInvoiceNumberFormat(t *testing.T) {
	require.Equal(t, "WebSales158270", InvoiceNumber("158270"))
}

func TestParseInvoiceNumberRejectsBadFormats(t *testing.T) {
	for _, bad := range []string{
		"",
		"WebSales",
		"WebSales-1",
		"WebSales12x",
		"websales123",
		"INV-0042",
		"WebSales 123",
		"xWebSales123",
	} {
		_, err := ParseInvoiceNumber(bad)
		require.Error(t, err, "expected %q to be rejected", bad)
		require.True(t, errors.Is(err, ErrInvalidInvoiceNumber))
	}
}

package auditlog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingRecordAndRead(t *testing.T) {
	r := NewRing(10)
	r.Record("WebSales1", "1", true, "Order 1 completed")

	entries := r.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "WebSales1", entries[0].InvoiceNumber)
	require.Equal(t, "1", entries[0].OrderID)
	require.True(t, entries[0].Success)
	require.NotEmpty(t, entries[0].ID)
	require.False(t, entries[0].Timestamp.IsZero())
}

func TestRingEvictsOldestAtCapacity(t *testing.T) {
	r := NewRing(5)
	for i := 0; i < 8; i++ {
		r.Record("", fmt.Sprintf("%d", i), true, fmt.Sprintf("entry %d", i))
	}

	entries := r.Entries()
	require.Len(t, entries, 5)
	// oldest three evicted
	require.Equal(t, "3", entries[0].OrderID)
	require.Equal(t, "7", entries[4].OrderID)
	require.Equal(t, 5, r.Len())
}

func TestRingDefaultCapacity(t *testing.T) {
	r := NewRing(0)
	for i := 0; i < DefaultCapacity+25; i++ {
		r.Record("", "", false, "x")
	}
	require.Equal(t, DefaultCapacity, r.Len())
}

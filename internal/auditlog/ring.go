// Package auditlog keeps a bounded, append-only record of every
// reconciliation outcome. The core only writes to it; the admin UI reads it.
package auditlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of entries retained before eviction.
const DefaultCapacity = 200

// Entry is a single activity record.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	OrderID       string    `json:"order_id,omitempty"`
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
}

// Ring is a fixed-capacity append-only log. When full, the oldest entry is
// evicted. Safe for concurrent use.
type Ring struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	nowFunc  func() time.Time
}

// NewRing returns a ring with the given capacity. Non-positive capacities
// fall back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		nowFunc:  time.Now,
	}
}

// Record appends an entry, evicting the oldest when at capacity.
func (r *Ring) Record(invoiceNumber, orderID string, success bool, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := Entry{
		ID:            uuid.NewString(),
		Timestamp:     r.nowFunc().UTC(),
		InvoiceNumber: invoiceNumber,
		OrderID:       orderID,
		Success:       success,
		Message:       message,
	}

	if len(r.entries) == r.capacity {
		copy(r.entries, r.entries[1:])
		r.entries[len(r.entries)-1] = e
		return
	}
	r.entries = append(r.entries, e)
}

// Entries returns a copy of the log, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the current number of entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

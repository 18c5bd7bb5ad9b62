// Package completion holds the single idempotent entry point both the
// webhook receiver and the polling reconciler funnel through to mark an
// order complete.
package completion

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/websaleshq/xero-reconciler/internal/auditlog"
	"github.com/websaleshq/xero-reconciler/internal/logger"
	"github.com/websaleshq/xero-reconciler/internal/orders"
)

var (
	// ErrOrderNotFound: the parsed order id resolves to nothing.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNoInvoiceLinked: the order carries no recorded invoice id. Guards
	// against acting on unrelated orders that happen to match the
	// numbering scheme.
	ErrNoInvoiceLinked = errors.New("order has no linked invoice")
)

// OrderStore is the order-store surface the processor needs.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	UpdateStatusWithNote(ctx context.Context, orderID, newStatus, note string) error
}

// Processor applies the paid-invoice completion transition. Every branch,
// success or failure, records exactly one audit entry.
type Processor struct {
	store  OrderStore
	audit  *auditlog.Ring
	logger *logger.Logger
}

// NewProcessor returns a Processor.
func NewProcessor(store OrderStore, audit *auditlog.Ring, log *logger.Logger) *Processor {
	return &Processor{
		store:  store,
		audit:  audit,
		logger: log,
	}
}

// ProcessPaidInvoice validates an invoice number, resolves it to an order,
// and performs the idempotent completion transition.
func (p *Processor) ProcessPaidInvoice(ctx context.Context, invoiceNumber string) error {
	orderID, err := orders.ParseInvoiceNumber(invoiceNumber)
	if err != nil {
		p.audit.Record(invoiceNumber, "", false,
			fmt.Sprintf("Invalid invoice number %q", invoiceNumber))
		return err
	}

	order, err := p.store.Get(ctx, orderID)
	if err != nil {
		p.audit.Record(invoiceNumber, orderID, false,
			fmt.Sprintf("Order lookup failed for %s: %v", orderID, err))
		return errors.Wrap(err, "resolve order")
	}
	if order == nil {
		p.audit.Record(invoiceNumber, orderID, false,
			fmt.Sprintf("Order %s not found for invoice %s", orderID, invoiceNumber))
		return errors.Mark(
			errors.Newf("no order with id %s", orderID),
			ErrOrderNotFound,
		)
	}

	if order.XeroInvoiceID == "" {
		p.audit.Record(invoiceNumber, orderID, false,
			fmt.Sprintf("Order %s has no linked Xero invoice, refusing to complete", orderID))
		return errors.Mark(
			errors.Newf("order %s carries no invoice id", orderID),
			ErrNoInvoiceLinked,
		)
	}

	return p.CompleteOrder(ctx, order, invoiceNumber)
}

// CompleteOrder performs the idempotent status transition on an already
// resolved order. The reconciler calls this directly since it holds the
// order from its scan.
func (p *Processor) CompleteOrder(ctx context.Context, order *orders.Order, invoiceNumber string) error {
	if order.Status == orders.StatusCompleted {
		p.audit.Record(invoiceNumber, order.OrderID, true,
			fmt.Sprintf("Order %s already completed, nothing to do", order.OrderID))
		return nil
	}

	note := fmt.Sprintf("Payment received for Xero invoice %s; order marked completed.", invoiceNumber)
	if err := p.store.UpdateStatusWithNote(ctx, order.OrderID, orders.StatusCompleted, note); err != nil {
		p.audit.Record(invoiceNumber, order.OrderID, false,
			fmt.Sprintf("Failed to complete order %s: %v", order.OrderID, err))
		return errors.Wrap(err, "complete order")
	}
	order.Status = orders.StatusCompleted

	p.audit.Record(invoiceNumber, order.OrderID, true,
		fmt.Sprintf("Order %s completed for invoice %s", order.OrderID, invoiceNumber))
	p.logger.Infow("order completed",
		"order_id", order.OrderID,
		"invoice_number", invoiceNumber)
	return nil
}

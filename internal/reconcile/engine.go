// Package reconcile implements the scheduled batch that cross-checks local
// pending orders against provider-side invoice status.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/websaleshq/xero-reconciler/internal/auditlog"
	"github.com/websaleshq/xero-reconciler/internal/aws"
	"github.com/websaleshq/xero-reconciler/internal/logger"
	"github.com/websaleshq/xero-reconciler/internal/orders"
	"github.com/websaleshq/xero-reconciler/internal/xero"
)

// DefaultLookback bounds how far back the order scan reaches.
const DefaultLookback = 90 * 24 * time.Hour

// InvoiceStatusClient looks up provider-side invoice payment status.
type InvoiceStatusClient interface {
	GetInvoiceStatus(ctx context.Context, invoiceID string) (string, error)
}

// OrderStore is the order-store surface the engine needs.
type OrderStore interface {
	FindAwaitingPayment(ctx context.Context, since time.Time) ([]orders.Order, error)
	SetInvoiceNumber(ctx context.Context, orderID, invoiceNumber string) error
}

// Completer applies the shared completion transition.
type Completer interface {
	CompleteOrder(ctx context.Context, order *orders.Order, invoiceNumber string) error
}

// Summary reports what a reconciliation run did.
type Summary struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	Failures  int `json:"failures"`
}

// Engine polls pending orders against the accounting API and completes the
// paid ones. Runs are safe to overlap: the completion transition is
// idempotent, so a duplicate concurrent run produces duplicate no-op log
// entries, never duplicate side effects.
type Engine struct {
	store     OrderStore
	invoices  InvoiceStatusClient
	completer Completer
	audit     *auditlog.Ring
	metrics   *aws.Metrics // optional
	logger    *logger.Logger
	lookback  time.Duration
	nowFunc   func() time.Time
}

// NewEngine creates a reconciliation engine. metrics may be nil.
func NewEngine(store OrderStore, invoices InvoiceStatusClient, completer Completer, audit *auditlog.Ring, metrics *aws.Metrics, log *logger.Logger, lookback time.Duration) *Engine {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Engine{
		store:     store,
		invoices:  invoices,
		completer: completer,
		audit:     audit,
		metrics:   metrics,
		logger:    log,
		lookback:  lookback,
		nowFunc:   time.Now,
	}
}

// CheckPaidInvoices runs one reconciliation pass. A single order's failure
// never aborts the batch; only a failed candidate query is an error.
func (e *Engine) CheckPaidInvoices(ctx context.Context) (Summary, error) {
	since := e.nowFunc().Add(-e.lookback)

	candidates, err := e.store.FindAwaitingPayment(ctx, since)
	if err != nil {
		return Summary{}, errors.Wrap(err, "find orders awaiting payment")
	}

	summary := Summary{Scanned: len(candidates)}
	if len(candidates) == 0 {
		e.logger.Infow("reconciliation run: no orders awaiting payment")
		e.audit.Record("", "", true, "Reconciliation run: no orders awaiting payment")
		e.emitMetrics(ctx, summary)
		return summary, nil
	}

	for i := range candidates {
		order := &candidates[i]

		status, err := e.invoices.GetInvoiceStatus(ctx, order.XeroInvoiceID)
		if err != nil {
			summary.Failures++
			e.audit.Record(order.XeroInvoiceNumber, order.OrderID, false,
				fmt.Sprintf("Invoice status lookup failed for order %s: %v", order.OrderID, err))
			e.logger.Errorw("invoice status lookup failed",
				"order_id", order.OrderID,
				"invoice_id", order.XeroInvoiceID,
				"error", err)
			continue
		}

		if status != xero.StatusPaid {
			e.logger.Debugw("invoice not paid yet",
				"order_id", order.OrderID,
				"status", status)
			continue
		}

		invoiceNumber := order.XeroInvoiceNumber
		if invoiceNumber == "" {
			invoiceNumber = orders.InvoiceNumber(order.OrderID)
			if err := e.store.SetInvoiceNumber(ctx, order.OrderID, invoiceNumber); err != nil {
				// Caching is best effort; the completion still proceeds.
				e.logger.Warnw("failed to cache invoice number",
					"order_id", order.OrderID,
					"error", err)
			}
			order.XeroInvoiceNumber = invoiceNumber
		}

		if err := e.completer.CompleteOrder(ctx, order, invoiceNumber); err != nil {
			summary.Failures++
			e.logger.Errorw("completion failed",
				"order_id", order.OrderID,
				"invoice_number", invoiceNumber,
				"error", err)
			continue
		}
		summary.Completed++
	}

	e.logger.Infow("reconciliation run finished",
		"scanned", summary.Scanned,
		"completed", summary.Completed,
		"failures", summary.Failures)
	e.emitMetrics(ctx, summary)
	return summary, nil
}

func (e *Engine) emitMetrics(ctx context.Context, s Summary) {
	if e.metrics == nil {
		return
	}
	if err := e.metrics.PutReconcileRun(ctx, s.Scanned, s.Completed, s.Failures); err != nil {
		e.logger.Warnw("failed to publish reconcile metrics", "error", err)
	}
}

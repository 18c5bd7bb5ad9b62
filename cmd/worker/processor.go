package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/cockroachdb/errors"

	"github.com/websaleshq/xero-reconciler/internal/logger"
	"github.com/websaleshq/xero-reconciler/internal/reconcile"
)

// Reconciler runs a reconciliation pass.
type Reconciler interface {
	CheckPaidInvoices(ctx context.Context) (reconcile.Summary, error)
}

// Processor handles SQS trigger messages by running the reconciler. The
// scheduler (an EventBridge rule firing every 30 minutes) and the manual
// trigger endpoint both land here.
type Processor struct {
	engine Reconciler
	logger *logger.Logger
}

// NewProcessor creates a worker processor.
func NewProcessor(engine Reconciler, log *logger.Logger) *Processor {
	return &Processor{
		engine: engine,
		logger: log,
	}
}

// Handle receives an SQS batch event and runs one reconciliation pass per
// trigger message. A backlog of stale triggers is harmless: each pass is a
// full scan and per-order transitions are idempotent.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry, and the message goes to the
			// DLQ after too many failures.
			p.logger.Errorw("worker error", "error", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg TriggerMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return errors.Wrap(err, "invalid trigger message body")
	}

	p.logger.Infow("reconcile trigger received",
		"trigger", msg.Trigger,
		"requested_by", msg.RequestedBy,
		"correlation_id", msg.CorrelationID)

	summary, err := p.engine.CheckPaidInvoices(ctx)
	if err != nil {
		return errors.Wrap(err, "reconciliation run failed")
	}

	p.logger.Infow("reconcile trigger handled",
		"trigger", msg.Trigger,
		"scanned", summary.Scanned,
		"completed", summary.Completed,
		"failures", summary.Failures)
	return nil
}

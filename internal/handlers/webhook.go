package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/websaleshq/xero-reconciler/internal/auditlog"
	"github.com/websaleshq/xero-reconciler/internal/logger"
	"github.com/websaleshq/xero-reconciler/internal/orders"
	"github.com/websaleshq/xero-reconciler/internal/xero"
)

// SignatureHeader is the webhook signature header sent by Xero.
const SignatureHeader = "x-xero-signature"

const (
	eventTypeUpdate      = "UPDATE"
	eventCategoryInvoice = "INVOICE"
)

// OrderResolver resolves orders by their provider-side invoice id.
type OrderResolver interface {
	FindByInvoiceID(ctx context.Context, invoiceID string) (*orders.Order, error)
	SetInvoiceNumber(ctx context.Context, orderID, invoiceNumber string) error
}

// InvoiceProcessor is the shared completion entry point.
type InvoiceProcessor interface {
	ProcessPaidInvoice(ctx context.Context, invoiceNumber string) error
}

// WebhookHandler verifies and routes inbound Xero webhook deliveries.
type WebhookHandler struct {
	resolver   OrderResolver
	processor  InvoiceProcessor
	audit      *auditlog.Ring
	signingKey string
	logger     *logger.Logger
}

// NewWebhookHandler returns a webhook handler. signingKey empty means every
// delivery is rejected (verification fails closed).
func NewWebhookHandler(resolver OrderResolver, processor InvoiceProcessor, audit *auditlog.Ring, signingKey string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		resolver:   resolver,
		processor:  processor,
		audit:      audit,
		signingKey: signingKey,
		logger:     log,
	}
}

type webhookEvent struct {
	ResourceID    string `json:"resourceId"`
	EventType     string `json:"eventType"`
	EventCategory string `json:"eventCategory"`
	EventDateUTC  string `json:"eventDateUtc"`
}

type webhookPayload struct {
	Events             []webhookEvent `json:"events"`
	FirstEventSequence *int64         `json:"firstEventSequence"`
	LastEventSequence  *int64         `json:"lastEventSequence"`
}

// isIntentToReceive reports whether the payload is the provider's
// endpoint-verification probe: sequence markers present, no events.
func (p *webhookPayload) isIntentToReceive() bool {
	return p.FirstEventSequence != nil && p.LastEventSequence != nil && len(p.Events) == 0
}

// Handle processes one webhook delivery. A structurally valid, correctly
// signed payload always gets a 200, even when individual events are
// skipped, so the provider does not retry valid deliveries.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if !xero.VerifySignature(body, signature, h.signingKey) {
		h.logger.Warnw("webhook signature verification failed",
			"has_signature", signature != "")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_payload",
			"msg":   err.Error(),
		})
		return
	}

	if payload.isIntentToReceive() {
		// Endpoint-verification probe; never touches order state.
		h.logger.Infow("webhook intent-to-receive verified",
			"first_sequence", *payload.FirstEventSequence,
			"last_sequence", *payload.LastEventSequence)
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	ctx := c.Request.Context()
	for _, ev := range payload.Events {
		if ev.EventType != eventTypeUpdate || ev.EventCategory != eventCategoryInvoice {
			continue
		}
		h.handleInvoiceEvent(ctx, ev)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleInvoiceEvent processes one actionable event. Failures are logged
// and never abort the rest of the batch.
func (h *WebhookHandler) handleInvoiceEvent(ctx context.Context, ev webhookEvent) {
	order, err := h.resolver.FindByInvoiceID(ctx, ev.ResourceID)
	if err != nil {
		h.audit.Record("", "", false,
			fmt.Sprintf("Order lookup failed for invoice ID %s: %v", ev.ResourceID, err))
		h.logger.Errorw("webhook order lookup failed",
			"resource_id", ev.ResourceID,
			"error", err)
		return
	}
	if order == nil {
		h.audit.Record("", "", false,
			fmt.Sprintf("Order not found for invoice ID %s", ev.ResourceID))
		h.logger.Warnw("no order for webhook invoice",
			"resource_id", ev.ResourceID)
		return
	}

	invoiceNumber := order.XeroInvoiceNumber
	if invoiceNumber == "" {
		invoiceNumber = orders.InvoiceNumber(order.OrderID)
		if err := h.resolver.SetInvoiceNumber(ctx, order.OrderID, invoiceNumber); err != nil {
			h.logger.Warnw("failed to cache invoice number",
				"order_id", order.OrderID,
				"error", err)
		}
	}

	if err := h.processor.ProcessPaidInvoice(ctx, invoiceNumber); err != nil {
		// The processor already recorded the audit entry for this outcome.
		h.logger.Errorw("webhook completion failed",
			"order_id", order.OrderID,
			"invoice_number", invoiceNumber,
			"error", err)
	}
}

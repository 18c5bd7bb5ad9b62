package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/websaleshq/xero-reconciler/internal/aws"
	"github.com/websaleshq/xero-reconciler/internal/logger"
	"github.com/websaleshq/xero-reconciler/internal/reconcile"
	"github.com/websaleshq/xero-reconciler/internal/validation"
)

// Reconciler runs a reconciliation pass.
type Reconciler interface {
	CheckPaidInvoices(ctx context.Context) (reconcile.Summary, error)
}

// ReconcileHandler serves the manual reconciliation trigger.
type ReconcileHandler struct {
	engine    Reconciler
	publisher *aws.Publisher // nil when no trigger queue is configured
	logger    *logger.Logger
}

// NewReconcileHandler returns a manual-trigger handler. publisher may be nil.
func NewReconcileHandler(engine Reconciler, publisher *aws.Publisher, log *logger.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		engine:    engine,
		publisher: publisher,
		logger:    log,
	}
}

// Trigger runs a reconciliation pass synchronously, or enqueues one for the
// worker when the request asks for async and a queue is configured.
func (h *ReconcileHandler) Trigger(c *gin.Context) {
	var req validation.ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := validation.BindAndValidate(c, &req, validation.New()); err != nil {
			// BindAndValidate already wrote a 400
			return
		}
	}

	if req.Async && h.publisher != nil {
		msg := map[string]string{
			"trigger":        "manual",
			"requested_by":   req.RequestedBy,
			"correlation_id": uuid.NewString(),
		}
		body, _ := json.Marshal(msg)
		if err := h.publisher.SendReconcileTrigger(c.Request.Context(), string(body), msg); err != nil {
			h.logger.Errorw("failed to enqueue reconcile trigger", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}

	summary, err := h.engine.CheckPaidInvoices(c.Request.Context())
	if err != nil {
		h.logger.Errorw("manual reconciliation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "reconcile_failed",
			"msg":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"scanned":   summary.Scanned,
		"completed": summary.Completed,
		"failures":  summary.Failures,
	})
}

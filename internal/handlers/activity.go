package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/websaleshq/xero-reconciler/internal/auditlog"
)

// ActivityHandler exposes the audit ring to the admin UI. The core itself
// never reads the log.
type ActivityHandler struct {
	audit *auditlog.Ring
}

// NewActivityHandler returns an activity handler.
func NewActivityHandler(audit *auditlog.Ring) *ActivityHandler {
	return &ActivityHandler{audit: audit}
}

// List returns the retained entries, oldest first.
func (h *ActivityHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": h.audit.Entries()})
}

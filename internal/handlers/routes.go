package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/websaleshq/xero-reconciler/internal/auditlog"
	"github.com/websaleshq/xero-reconciler/internal/aws"
	"github.com/websaleshq/xero-reconciler/internal/logger"
)

// HandlerConfig groups dependencies for the HTTP surface.
type HandlerConfig struct {
	Resolver    OrderResolver
	Processor   InvoiceProcessor
	Engine      Reconciler
	Authorizer  Authorizer
	Publisher   *aws.Publisher // optional
	Audit       *auditlog.Ring
	SigningKey  string
	RedirectURI string
	SettingsURL string
	Logger      *logger.Logger
}

// RegisterRoutes wires the webhook, OAuth callback, manual trigger, and
// activity routes.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	webhook := NewWebhookHandler(cfg.Resolver, cfg.Processor, cfg.Audit, cfg.SigningKey, cfg.Logger)
	oauth := NewOAuthHandler(cfg.Authorizer, cfg.RedirectURI, cfg.SettingsURL, cfg.Logger)
	trigger := NewReconcileHandler(cfg.Engine, cfg.Publisher, cfg.Logger)
	activity := NewActivityHandler(cfg.Audit)

	r.POST("/webhooks/xero", webhook.Handle)
	r.GET("/oauth/xero/callback", oauth.Callback)
	r.POST("/reconcile", trigger.Trigger)
	r.GET("/activity", activity.List)
}

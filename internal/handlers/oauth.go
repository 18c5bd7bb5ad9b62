package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/websaleshq/xero-reconciler/internal/logger"
)

// Authorizer completes the OAuth2 authorization-code flow.
type Authorizer interface {
	CompleteAuthorization(ctx context.Context, code, redirectURI string) error
}

// OAuthHandler serves the OAuth redirect endpoint. Failures here are
// terminal and surfaced directly: there is no automated retry path for an
// interactive flow.
type OAuthHandler struct {
	tokens      Authorizer
	redirectURI string
	settingsURL string
	logger      *logger.Logger
}

// NewOAuthHandler returns an OAuth callback handler. settingsURL is where
// the browser lands after a successful connection.
func NewOAuthHandler(tokens Authorizer, redirectURI, settingsURL string, log *logger.Logger) *OAuthHandler {
	return &OAuthHandler{
		tokens:      tokens,
		redirectURI: redirectURI,
		settingsURL: settingsURL,
		logger:      log,
	}
}

// Callback exchanges the authorization code, persists credentials, and
// redirects to the settings page with a success indicator.
func (h *OAuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_code"})
		return
	}

	if err := h.tokens.CompleteAuthorization(c.Request.Context(), code, h.redirectURI); err != nil {
		h.logger.Errorw("xero authorization failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "authorization_failed",
			"msg":   err.Error(),
		})
		return
	}

	c.Redirect(http.StatusFound, h.settingsURL+"?xero_connected=1")
}

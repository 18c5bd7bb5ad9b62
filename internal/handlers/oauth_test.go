package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/websaleshq/xero-reconciler/internal/logger"
)

type fakeAuthorizer struct {
	gotCode     string
	gotRedirect string
	err         error
}

func (f *fakeAuthorizer) CompleteAuthorization(ctx context.Context, code, redirectURI string) error {
	f.gotCode = code
	f.gotRedirect = redirectURI
	return f.err
}

func newOAuthRouter(auth Authorizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewOAuthHandler(auth, "https://app.example.com/oauth/xero/callback", "https://app.example.com/settings", logger.NewNop())
	r.GET("/oauth/xero/callback", h.Callback)
	return r
}

func TestOAuthCallbackSuccess(t *testing.T) {
	auth := &fakeAuthorizer{}
	r := newOAuthRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/oauth/xero/callback?code=auth-code-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "https://app.example.com/settings?xero_connected=1", w.Header().Get("Location"))
	require.Equal(t, "auth-code-1", auth.gotCode)
	require.Equal(t, "https://app.example.com/oauth/xero/callback", auth.gotRedirect)
}

func TestOAuthCallbackMissingCode(t *testing.T) {
	auth := &fakeAuthorizer{}
	r := newOAuthRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/oauth/xero/callback", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "missing_code")
	require.Empty(t, auth.gotCode)
}

func TestOAuthCallbackExchangeFailure(t *testing.T) {
	auth := &fakeAuthorizer{err: errors.New("token endpoint returned status 400")}
	r := newOAuthRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/oauth/xero/callback?code=bad-code", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), "authorization_failed")
}

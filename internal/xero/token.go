package xero

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/websaleshq/xero-reconciler/internal/credentials"
	"github.com/websaleshq/xero-reconciler/internal/logger"
)

// CredentialStore is the persistence surface the token manager needs.
type CredentialStore interface {
	Load(ctx context.Context) (*credentials.Record, error)
	Save(ctx context.Context, rec *credentials.Record) error
}

// TokenManager owns the OAuth2 credential lifecycle: validation, refresh,
// and the initial authorization-code exchange. Refreshes are serialized so
// two concurrent callers can't race and clobber a rotated refresh token.
type TokenManager struct {
	store        CredentialStore
	clientID     string
	clientSecret string
	signingKey   string
	endpoints    Endpoints
	httpClient   *http.Client
	logger       *logger.Logger

	mu      sync.Mutex
	nowFunc func() time.Time
}

// NewTokenManager creates a token manager. clientID/clientSecret/signingKey
// come from configuration and are seeded into the stored record so the
// credential record stays the single source of truth.
func NewTokenManager(store CredentialStore, clientID, clientSecret, signingKey string, endpoints Endpoints, log *logger.Logger) *TokenManager {
	return &TokenManager{
		store:        store,
		clientID:     clientID,
		clientSecret: clientSecret,
		signingKey:   signingKey,
		endpoints:    endpoints,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  log,
		nowFunc: time.Now,
	}
}

// GetValidAccessToken returns the stored access token if it has not
// expired, refreshing it otherwise. Returns ErrUnauthenticated when no
// token has ever been obtained and no refresh is possible.
func (m *TokenManager) GetValidAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadRecord(ctx)
	if err != nil {
		return "", err
	}

	if rec.AccessTokenValid(m.nowFunc()) {
		return rec.AccessToken, nil
	}

	if !rec.CanRefresh() {
		if rec.AccessToken == "" {
			return "", errors.Mark(
				errors.New("no access token has been obtained; complete authorization first"),
				ErrUnauthenticated,
			)
		}
		return "", errors.Mark(
			errors.New("access token expired and refresh is not possible"),
			ErrUnauthenticated,
		)
	}

	refreshed, err := m.refreshLocked(ctx, rec)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// RefreshAccessToken forces a refresh-token exchange. On failure the stored
// credentials are left untouched.
func (m *TokenManager) RefreshAccessToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadRecord(ctx)
	if err != nil {
		return err
	}
	_, err = m.refreshLocked(ctx, rec)
	return err
}

// CompleteAuthorization exchanges an authorization code for the initial
// token pair, resolves the tenant bound to the grant, and persists the full
// credential record in one write. Nothing is persisted on any failure.
func (m *TokenManager) CompleteAuthorization(ctx context.Context, code, redirectURI string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadRecord(ctx)
	if err != nil {
		return err
	}
	if rec.ClientID == "" || rec.ClientSecret == "" {
		return errors.Mark(
			errors.New("client credentials required for authorization code exchange"),
			ErrMissingCredentials,
		)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	tok, err := m.tokenExchange(ctx, rec, form)
	if err != nil {
		return err
	}

	tenants, err := m.listConnections(ctx, tok.AccessToken)
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		return errors.Mark(
			errors.New("connections endpoint returned no tenants for this grant"),
			ErrNoTenant,
		)
	}

	now := m.nowFunc()
	rec.AccessToken = tok.AccessToken
	rec.RefreshToken = tok.RefreshToken
	rec.ExpiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second).Unix()
	rec.TenantID = tenants[0].TenantID
	rec.TenantName = tenants[0].TenantName

	if err := m.store.Save(ctx, rec); err != nil {
		return errors.Wrap(err, "persist credentials")
	}

	m.logger.Infow("xero authorization complete",
		"tenant_id", rec.TenantID,
		"tenant_name", rec.TenantName)
	return nil
}

// Tenant returns the stored tenant id, empty when not yet connected.
func (m *TokenManager) Tenant(ctx context.Context) (string, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", nil
	}
	return rec.TenantID, nil
}

// loadRecord loads the stored record, creating an in-memory one seeded with
// the configured client credentials when none exists yet.
func (m *TokenManager) loadRecord(ctx context.Context) (*credentials.Record, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &credentials.Record{RecordID: credentials.RecordID}
	}
	if rec.ClientID == "" {
		rec.ClientID = m.clientID
	}
	if rec.ClientSecret == "" {
		rec.ClientSecret = m.clientSecret
	}
	if rec.SigningKey == "" {
		rec.SigningKey = m.signingKey
	}
	return rec, nil
}

// refreshLocked performs the refresh-token grant. The caller must hold
// m.mu. The record passed in is only mutated after a successful exchange,
// and saved in a single write.
func (m *TokenManager) refreshLocked(ctx context.Context, rec *credentials.Record) (*credentials.Record, error) {
	if !rec.CanRefresh() {
		return nil, errors.Mark(
			errors.New("refresh requires refresh_token, client_id and client_secret"),
			ErrMissingCredentials,
		)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", rec.RefreshToken)

	tok, err := m.tokenExchange(ctx, rec, form)
	if err != nil {
		return nil, errors.Mark(err, ErrRefreshFailed)
	}

	now := m.nowFunc()
	rec.AccessToken = tok.AccessToken
	rec.ExpiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second).Unix()
	// Xero rotates the refresh token; other providers may not. Keep the old
	// one when the response omits it.
	if tok.RefreshToken != "" {
		rec.RefreshToken = tok.RefreshToken
	}

	if err := m.store.Save(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "persist refreshed credentials")
	}

	m.logger.Debugw("access token refreshed", "expires_at", rec.ExpiresAt)
	return rec, nil
}

// tokenExchange POSTs a grant to the token endpoint with Basic client auth.
func (m *TokenManager) tokenExchange(ctx context.Context, rec *credentials.Record, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "create token request")
	}

	auth := fmt.Sprintf("%s:%s", rec.ClientID, rec.ClientSecret)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(auth)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "token endpoint unreachable"), ErrNetwork)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read token response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, errors.Wrap(err, "parse token response")
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}
	return &tok, nil
}

// listConnections resolves the tenants bound to an access token.
func (m *TokenManager) listConnections(ctx context.Context, accessToken string) ([]connection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoints.ConnectionsURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create connections request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "connections endpoint unreachable"), ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("connections endpoint returned status %d", resp.StatusCode)
	}

	var tenants []connection
	if err := json.NewDecoder(resp.Body).Decode(&tenants); err != nil {
		return nil, errors.Wrap(err, "parse connections response")
	}
	return tenants, nil
}

package xero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/websaleshq/xero-reconciler/internal/credentials"
	"github.com/websaleshq/xero-reconciler/internal/logger"
)

// memStore is an in-memory CredentialStore.
type memStore struct {
	mu    sync.Mutex
	rec   *credentials.Record
	saves int
}

func (s *memStore) Load(ctx context.Context) (*credentials.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, nil
	}
	cp := *s.rec
	return &cp, nil
}

func (s *memStore) Save(ctx context.Context, rec *credentials.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.rec = &cp
	s.saves++
	return nil
}

func newTestManager(store *memStore, endpoints Endpoints) *TokenManager {
	return NewTokenManager(store, "client-id", "client-secret", "whsec", endpoints, logger.NewNop())
}

func TestGetValidAccessTokenReturnsStoredToken(t *testing.T) {
	store := &memStore{rec: &credentials.Record{
		AccessToken: "at-live",
		ExpiresAt:   time.Now().Add(10 * time.Minute).Unix(),
	}}
	m := newTestManager(store, Endpoints{})

	tok, err := m.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "at-live", tok)
	require.Equal(t, 0, store.saves)
}

func TestGetValidAccessTokenNeverAuthorized(t *testing.T) {
	m := NewTokenManager(&memStore{}, "", "", "", Endpoints{}, logger.NewNop())

	_, err := m.GetValidAccessToken(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnauthenticated))
}

func TestGetValidAccessTokenRefreshesExpired(t *testing.T) {
	var tokenCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "client-id", user)
		require.Equal(t, "client-secret", pass)

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-new",
			"refresh_token": "rt-new",
			"expires_in":    1800,
		})
	}))
	defer srv.Close()

	store := &memStore{rec: &credentials.Record{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}}
	m := newTestManager(store, Endpoints{TokenURL: srv.URL})

	tok, err := m.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "at-new", tok)
	require.Equal(t, 1, tokenCalls)
	require.Equal(t, 1, store.saves)
	require.Equal(t, "rt-new", store.rec.RefreshToken)
	require.Greater(t, store.rec.ExpiresAt, time.Now().Unix())
}

func TestRefreshPreservesRefreshTokenWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-new",
			"expires_in":   1800,
		})
	}))
	defer srv.Close()

	store := &memStore{rec: &credentials.Record{
		RefreshToken: "rt-keep",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}}
	m := newTestManager(store, Endpoints{TokenURL: srv.URL})

	require.NoError(t, m.RefreshAccessToken(context.Background()))
	require.Equal(t, "rt-keep", store.rec.RefreshToken)
	require.Equal(t, "at-new", store.rec.AccessToken)
}

func TestRefreshWithoutCredentials(t *testing.T) {
	store := &memStore{rec: &credentials.Record{AccessToken: "at"}}
	m := NewTokenManager(store, "", "", "", Endpoints{}, logger.NewNop())

	err := m.RefreshAccessToken(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingCredentials))
	require.Equal(t, 0, store.saves)
}

func TestRefreshFailureLeavesStoreUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	store := &memStore{rec: &credentials.Record{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}}
	m := newTestManager(store, Endpoints{TokenURL: srv.URL})

	err := m.RefreshAccessToken(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRefreshFailed))
	require.Equal(t, 0, store.saves)
	require.Equal(t, "at-old", store.rec.AccessToken)
	require.Equal(t, "rt-old", store.rec.RefreshToken)
}

func TestCompleteAuthorization(t *testing.T) {
	var tokenCalls, connCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "auth-code-1", r.PostForm.Get("code"))
		require.Equal(t, "https://app.example.com/oauth/xero/callback", r.PostForm.Get("redirect_uri"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-first",
			"refresh_token": "rt-first",
			"expires_in":    1800,
		})
	})
	mux.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		connCalls++
		require.Equal(t, "Bearer at-first", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "c1", "tenantId": "tenant-1", "tenantName": "Demo Company"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{}
	m := newTestManager(store, Endpoints{
		TokenURL:       srv.URL + "/connect/token",
		ConnectionsURL: srv.URL + "/connections",
	})

	err := m.CompleteAuthorization(context.Background(), "auth-code-1", "https://app.example.com/oauth/xero/callback")
	require.NoError(t, err)
	require.Equal(t, 1, tokenCalls)
	require.Equal(t, 1, connCalls)

	// a single save carries the whole record
	require.Equal(t, 1, store.saves)
	require.Equal(t, "at-first", store.rec.AccessToken)
	require.Equal(t, "rt-first", store.rec.RefreshToken)
	require.Equal(t, "tenant-1", store.rec.TenantID)
	require.Equal(t, "Demo Company", store.rec.TenantName)
	require.Equal(t, "client-id", store.rec.ClientID)
	require.Equal(t, "whsec", store.rec.SigningKey)
}

func TestCompleteAuthorizationNoTenant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-first",
			"refresh_token": "rt-first",
			"expires_in":    1800,
		})
	})
	mux.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{}
	m := newTestManager(store, Endpoints{
		TokenURL:       srv.URL + "/connect/token",
		ConnectionsURL: srv.URL + "/connections",
	})

	err := m.CompleteAuthorization(context.Background(), "code", "https://app.example.com/cb")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoTenant))
	require.Equal(t, 0, store.saves)
}

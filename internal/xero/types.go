package xero

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for the token lifecycle and invoice lookups. Callers
// match with errors.Is.
var (
	// ErrMissingCredentials: a refresh was attempted without a refresh
	// token or client credentials.
	ErrMissingCredentials = errors.New("missing refresh token or client credentials")
	// ErrRefreshFailed: the token endpoint rejected the refresh or was
	// unreachable. Stored credentials are left untouched.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrNoTenant: the connections endpoint returned no tenant for a
	// freshly authorized grant.
	ErrNoTenant = errors.New("no tenant connected to authorization")
	// ErrUnauthenticated: no valid access token is available.
	ErrUnauthenticated = errors.New("not authenticated with Xero")
	// ErrMissingTenant: no tenant id stored; API calls cannot be issued.
	ErrMissingTenant = errors.New("tenant id not configured")
	// ErrInvoiceNotFound: the provider response contained no invoice.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrNetwork: transport-level failure on an outbound call.
	ErrNetwork = errors.New("network error")
)

// ProviderError carries the HTTP status and provider-supplied detail of a
// non-success accounting API response.
type ProviderError struct {
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("xero api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("xero api error: status %d: %s", e.StatusCode, e.Detail)
}

// Endpoints groups the Xero URLs so tests can point at httptest servers.
type Endpoints struct {
	TokenURL       string
	ConnectionsURL string
	APIBaseURL     string
}

// DefaultEndpoints returns the production Xero endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		TokenURL:       "https://identity.xero.com/connect/token",
		ConnectionsURL: "https://api.xero.com/connections",
		APIBaseURL:     "https://api.xero.com/api.xro/2.0",
	}
}

// tokenResponse is the token endpoint payload for both the
// authorization-code and refresh-token grants. Xero rotates the refresh
// token on every refresh, but other providers don't; an absent
// refresh_token must preserve the stored one.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// connection is one entry from GET /connections.
type connection struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
	TenantType string `json:"tenantType"`
}

// invoiceListResponse is the Invoices lookup payload. Only the fields the
// reconciler needs.
type invoiceListResponse struct {
	Invoices []struct {
		InvoiceID     string `json:"InvoiceID"`
		InvoiceNumber string `json:"InvoiceNumber"`
		Status        string `json:"Status"`
	} `json:"Invoices"`
}

// apiErrorResponse is the error body shape of the Xero API.
type apiErrorResponse struct {
	Title   string `json:"Title"`
	Detail  string `json:"Detail"`
	Message string `json:"Message"`
}

package xero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/websaleshq/xero-reconciler/internal/logger"
)

// StatusPaid is the invoice status the reconciler acts on.
const StatusPaid = "PAID"

// InvoiceClient queries the accounting API for invoice payment status.
type InvoiceClient struct {
	tokens     *TokenManager
	endpoints  Endpoints
	httpClient *http.Client
	logger     *logger.Logger
}

// NewInvoiceClient returns an invoice status client using the token manager
// for auth and tenant resolution.
func NewInvoiceClient(tokens *TokenManager, endpoints Endpoints, log *logger.Logger) *InvoiceClient {
	return &InvoiceClient{
		tokens:    tokens,
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log,
	}
}

// GetInvoiceStatus looks up the payment status of a provider invoice id.
//
// On a 401 it triggers exactly one token refresh and returns without
// retrying the lookup; the caller re-invokes if it wants the refreshed
// token to take effect. This bounds worst-case work per call to one lookup
// plus one refresh.
func (c *InvoiceClient) GetInvoiceStatus(ctx context.Context, invoiceID string) (string, error) {
	token, err := c.tokens.GetValidAccessToken(ctx)
	if err != nil {
		return "", errors.Mark(err, ErrUnauthenticated)
	}

	tenantID, err := c.tokens.Tenant(ctx)
	if err != nil {
		return "", err
	}
	if tenantID == "" {
		return "", errors.Mark(
			errors.New("no tenant id stored; reconnect the Xero organisation"),
			ErrMissingTenant,
		)
	}

	lookupURL := fmt.Sprintf("%s/Invoices/%s", c.endpoints.APIBaseURL, invoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "create invoice request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Xero-tenant-id", tenantID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "invoice lookup failed"), ErrNetwork)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read invoice response")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// One refresh, no automatic retry of the lookup.
		if refreshErr := c.tokens.RefreshAccessToken(ctx); refreshErr != nil {
			c.logger.Errorw("token refresh after 401 failed",
				"invoice_id", invoiceID,
				"error", refreshErr)
		}
		return "", errors.Mark(
			errors.New("invoice lookup rejected with 401; token refreshed, caller should retry"),
			ErrUnauthenticated,
		)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{
			StatusCode: resp.StatusCode,
			Detail:     providerDetail(body),
		}
	}

	var list invoiceListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return "", errors.Wrap(err, "parse invoice response")
	}
	if len(list.Invoices) == 0 {
		return "", errors.Mark(
			errors.Newf("no invoice in response for id %s", invoiceID),
			ErrInvoiceNotFound,
		)
	}

	return list.Invoices[0].Status, nil
}

// providerDetail extracts a human-readable message from an error body.
func providerDetail(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Title != "" {
			return apiErr.Title
		}
	}
	return strings.TrimSpace(string(body))
}

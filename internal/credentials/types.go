package credentials

import "time"

// RecordID is the partition key of the single Xero credential item.
const RecordID = "xero"

// Record is the persisted OAuth2 credential state for the Xero connection.
// There is exactly one record per deployment; only the token manager
// mutates it.
type Record struct {
	RecordID     string    `dynamodbav:"record_id"` // PK, always "xero"
	AccessToken  string    `dynamodbav:"access_token,omitempty"`
	RefreshToken string    `dynamodbav:"refresh_token,omitempty"`
	ExpiresAt    int64     `dynamodbav:"expires_at,omitempty"` // absolute epoch seconds
	ClientID     string    `dynamodbav:"client_id,omitempty"`
	ClientSecret string    `dynamodbav:"client_secret,omitempty"`
	TenantID     string    `dynamodbav:"tenant_id,omitempty"`
	TenantName   string    `dynamodbav:"tenant_name,omitempty"`
	SigningKey   string    `dynamodbav:"signing_key,omitempty"`
	UpdatedAt    time.Time `dynamodbav:"updated_at"`
}

// AccessTokenValid reports whether the stored access token exists and has
// not expired at the given instant.
func (r *Record) AccessTokenValid(now time.Time) bool {
	return r.AccessToken != "" && now.Unix() < r.ExpiresAt
}

// CanRefresh reports whether the record carries everything a refresh-token
// grant needs.
func (r *Record) CanRefresh() bool {
	return r.RefreshToken != "" && r.ClientID != "" && r.ClientSecret != ""
}

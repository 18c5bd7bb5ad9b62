package xero

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifySignature checks a webhook payload signature: base64 of the
// HMAC-SHA256 of the raw body under the signing key, compared in constant
// time. Fails closed when no signing key is configured.
func VerifySignature(body []byte, signature, signingKey string) bool {
	if signingKey == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// VerifyShopifyHMAC checks the X-Shopify-Hmac-Sha256 header against the raw
// request body: HMAC-SHA256 over the body with the shared secret, base64
// encoded. Comparison is constant time. An empty secret or header never
// verifies.
func VerifyShopifyHMAC(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	digest := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(digest), []byte(header))
}

// secretEqual compares a presented shared secret in constant time.
func secretEqual(presented, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(want)) == 1
}

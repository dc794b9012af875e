package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyShopifyHMAC(t *testing.T) {
	body := []byte(`{"email":"jane@example.com"}`)
	secret := "shpss_test"

	if !VerifyShopifyHMAC(secret, body, sign(secret, body)) {
		t.Fatalf("valid signature must verify")
	}
	if VerifyShopifyHMAC(secret, body, sign("other_secret", body)) {
		t.Fatalf("signature from a different secret must not verify")
	}
	if VerifyShopifyHMAC(secret, []byte(`{"email":"tampered"}`), sign(secret, body)) {
		t.Fatalf("tampered body must not verify")
	}
	if VerifyShopifyHMAC(secret, body, "") {
		t.Fatalf("missing header must not verify")
	}
	if VerifyShopifyHMAC("", body, sign("", body)) {
		t.Fatalf("empty secret must never verify")
	}
}

func TestSecretEqual(t *testing.T) {
	if !secretEqual("s3cret", "s3cret") {
		t.Fatalf("matching secrets must compare equal")
	}
	if secretEqual("wrong", "s3cret") {
		t.Fatalf("mismatched secrets must not compare equal")
	}
	if secretEqual("", "") {
		t.Fatalf("unset secret must reject everything")
	}
}

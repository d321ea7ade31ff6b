package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const (
	SecretHeader    = "x-webhook-secret"
	SignatureHeader = "x-supabase-signature"

	signaturePrefix = "sha256="
)

// Verify authenticates a webhook body. A shared-secret header wins when present;
// otherwise the signature header must carry the hex HMAC-SHA256 of payload. An
// empty configured secret never authenticates anything.
func Verify(payload []byte, secretHeader, signatureHeader, configuredSecret string) bool {
	if configuredSecret == "" {
		return false
	}
	if secretHeader != "" {
		return subtle.ConstantTimeCompare([]byte(secretHeader), []byte(configuredSecret)) == 1
	}
	if signatureHeader == "" {
		return false
	}
	got := strings.TrimPrefix(signatureHeader, signaturePrefix)
	want := Sign(payload, configuredSecret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// Sign returns the hex HMAC-SHA256 of payload, without the "sha256=" prefix.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureValue is the full header value for a signed payload.
func SignatureValue(payload []byte, secret string) string {
	return signaturePrefix + Sign(payload, secret)
}

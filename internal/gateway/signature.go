package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the hex HMAC-SHA256 of body under secret. The webhook sender
// puts this value in the signature header; VerifySignature recomputes it.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature compares in constant time. The header may carry a
// "sha256=" prefix.
func verifySignature(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	header = strings.TrimPrefix(header, "sha256=")
	want := Sign(body, secret)
	return hmac.Equal([]byte(want), []byte(header))
}

package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Signature computes the base64 HMAC-SHA256 of body under secret, the scheme
// the commerce platform signs webhook deliveries with.
func Signature(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature verifies header against the computed signature in constant
// time. An empty header never validates.
func ValidSignature(secret, body []byte, header string) bool {
	if header == "" {
		return false
	}
	return hmac.Equal([]byte(Signature(secret, body)), []byte(header))
}

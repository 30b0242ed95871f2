// Package signature signs webhook bodies with HMAC-SHA256.
//
// The signature is the lowercase hex digest of HMAC-SHA256(body, secret),
// carried in the X-Webhook-Signature header. Deliveries without a secret
// carry no signature header at all.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header is the request header that carries the signature.
const Header = "X-Webhook-Signature"

// Sign returns hex(HMAC-SHA256(body, secret)).
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Signer is a Sign bound to a secret.
type Signer struct {
	secret string
}

// NewSigner returns a Signer for secret. An empty secret yields a Signer
// whose Sign reports false.
func NewSigner(secret string) *Signer {
	return &Signer{secret: secret}
}

// Sign signs body, reporting false when no secret is configured.
func (s *Signer) Sign(body []byte) (string, bool) {
	if s == nil || s.secret == "" {
		return "", false
	}
	return Sign(body, s.secret), true
}

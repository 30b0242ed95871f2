package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSecret returns a random signing secret: "whsec_" followed by 32
// random bytes in hex.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("press: failed to generate random secret: " + err.Error())
	}
	return "whsec_" + hex.EncodeToString(b)
}

package signature_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/xraph/press/signature"
)

func TestGenerateSecret(t *testing.T) {
	a := signature.GenerateSecret()
	b := signature.GenerateSecret()

	if a == b {
		t.Fatalf("two secrets collided: %q", a)
	}

	for _, secret := range []string{a, b} {
		raw, ok := strings.CutPrefix(secret, "whsec_")
		if !ok {
			t.Fatalf("missing whsec_ prefix: %q", secret)
		}
		decoded, err := hex.DecodeString(raw)
		if err != nil {
			t.Fatalf("secret body is not hex: %v", err)
		}
		if len(decoded) != 32 {
			t.Errorf("secret carries %d random bytes, want 32", len(decoded))
		}
	}
}

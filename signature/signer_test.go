package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/xraph/press/signature"
)

func TestSignKnownVector(t *testing.T) {
	body := []byte(`{"event":"entry.published","entry_id":"entry_01"}`)
	secret := "whsec_testsecret123"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if got := signature.Sign(body, secret); got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	body := []byte(`{"space_id":"7","collection":"posts"}`)
	secret := "whsec_roundtripsecret"

	sig := signature.Sign(body, secret)
	if !signature.Verify(body, secret, sig) {
		t.Error("Verify() returned false for valid signature")
	}
}

func TestVerifyTamperedBody(t *testing.T) {
	secret := "whsec_tampersecret"
	sig := signature.Sign([]byte(`{"original":true}`), secret)

	if signature.Verify([]byte(`{"original":false}`), secret, sig) {
		t.Error("Verify() returned true for tampered body")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	body := []byte(`{"data":"value"}`)
	sig := signature.Sign(body, "whsec_correct")

	if signature.Verify(body, "whsec_wrong", sig) {
		t.Error("Verify() returned true for wrong secret")
	}
}

func TestSignerWithoutSecret(t *testing.T) {
	s := signature.NewSigner("")
	if _, ok := s.Sign([]byte(`{}`)); ok {
		t.Error("Sign() reported a signature without a secret")
	}

	var nilSigner *signature.Signer
	if _, ok := nilSigner.Sign([]byte(`{}`)); ok {
		t.Error("nil Signer reported a signature")
	}
}

func TestSignerWithSecret(t *testing.T) {
	body := []byte(`{"x":1}`)
	sig, ok := signature.NewSigner("whsec_abc").Sign(body)
	if !ok {
		t.Fatal("Sign() reported no signature with a secret")
	}
	if sig != signature.Sign(body, "whsec_abc") {
		t.Errorf("Signer.Sign() = %q, want package Sign result", sig)
	}
}

package gateway

import "testing"

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":"evt_1","key":"charge.complete"}`)
	secret := "whsec_test"

	t.Run("valid signature accepted", func(t *testing.T) {
		if !verifySignature(body, Sign(body, secret), secret) {
			t.Fatal("valid signature rejected")
		}
	})

	t.Run("sha256 prefix accepted", func(t *testing.T) {
		if !verifySignature(body, "sha256="+Sign(body, secret), secret) {
			t.Fatal("prefixed signature rejected")
		}
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		sig := Sign(body, secret)
		tampered := []byte(`{"id":"evt_1","key":"charge.complete","amount":1}`)
		if verifySignature(tampered, sig, secret) {
			t.Fatal("tampered body accepted")
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		if verifySignature(body, Sign(body, "other"), secret) {
			t.Fatal("signature under wrong secret accepted")
		}
	})

	t.Run("empty header or secret rejected", func(t *testing.T) {
		if verifySignature(body, "", secret) || verifySignature(body, Sign(body, secret), "") {
			t.Fatal("empty header/secret must not verify")
		}
	})
}

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
)

func signHS256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	hdr, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	pl, _ := json.Marshal(claims)
	h := base64.RawURLEncoding.EncodeToString(hdr)
	p := base64.RawURLEncoding.EncodeToString(pl)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(h + "." + p))
	return h + "." + p + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestDevModeToken(t *testing.T) {
	v := NewVerifier("dev", "")
	p, err := v.Verify("dispatcher:dana")
	if err != nil { t.Fatalf("verify: %v", err) }
	if p.Role != "dispatcher" || p.Subject != "dana" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	p, err = v.Verify("admin")
	if err != nil || p.Role != "admin" { t.Fatalf("bare role: %+v %v", p, err) }
	if _, err := v.Verify(":x"); err == nil { t.Fatal("empty role should fail") }
}

func TestHMACMode(t *testing.T) {
	v := NewVerifier("hmac", "secret")
	tok := signHS256(t, "secret", map[string]any{"role": "Mechanic", "sub": "m1"})
	p, err := v.Verify(tok)
	if err != nil { t.Fatalf("verify: %v", err) }
	if p.Role != "mechanic" || p.Subject != "m1" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestHMACModeBadSignature(t *testing.T) {
	v := NewVerifier("hmac", "secret")
	tok := signHS256(t, "wrong", map[string]any{"role": "admin"})
	if _, err := v.Verify(tok); err == nil {
		t.Fatal("expected bad signature error")
	}
}

func TestHMACModeDefaultsRole(t *testing.T) {
	v := NewVerifier("hmac", "secret")
	tok := signHS256(t, "secret", map[string]any{"sub": "x"})
	p, err := v.Verify(tok)
	if err != nil { t.Fatalf("verify: %v", err) }
	if p.Role != "dispatcher" { t.Fatalf("default role: %q", p.Role) }
}

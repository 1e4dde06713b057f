package auth

import (
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)

	token, expiresAt, err := tm.GenerateToken("admin-1", "ops@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if expiresAt.IsZero() {
		t.Error("expiry not set")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AdminID != "admin-1" || claims.Email != "ops@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 30).GenerateToken("admin-1", "ops@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("secret-b", 30).ParseToken(token); err == nil {
		t.Error("expected signature verification failure")
	}
}

func TestExtractClaimsSkipsVerification(t *testing.T) {
	// Session attribution reads claims without the signing secret.
	token, _, err := NewTokenManager("idp-secret", 30).GenerateToken("admin-9", "boss@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ExtractClaims(token)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if claims.AdminID != "admin-9" {
		t.Errorf("admin id = %q, want admin-9", claims.AdminID)
	}
}

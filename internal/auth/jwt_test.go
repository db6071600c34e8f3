package auth

import (
	"strings"
	"testing"
	"time"
)

func TestManager_AccessTokenRoundTrip(t *testing.T) {
	m := NewManager("secret", time.Hour, 24*time.Hour)

	raw, err := m.GenerateAccessToken("user-1", "customer")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "customer" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestManager_RejectsExpired(t *testing.T) {
	m := NewManager("secret", time.Minute, time.Hour)
	issued := time.Now().UTC()
	m.now = func() time.Time { return issued }

	raw, err := m.GenerateAccessToken("user-1", "customer")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestManager_RejectsWrongType(t *testing.T) {
	m := NewManager("secret", time.Hour, time.Hour)

	refresh, _, _, err := m.GenerateRefreshToken("user-1", "customer")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.VerifyAccessToken(refresh); err == nil {
		t.Fatal("refresh token must not pass as access token")
	}

	access, _ := m.GenerateAccessToken("user-1", "customer")
	if _, err := m.VerifyRefreshToken(access); err == nil {
		t.Fatal("access token must not pass as refresh token")
	}
}

func TestManager_RejectsTamperedAndForeign(t *testing.T) {
	m := NewManager("secret", time.Hour, time.Hour)
	raw, _ := m.GenerateAccessToken("user-1", "customer")

	parts := strings.Split(raw, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	if _, err := m.VerifyAccessToken(tampered); err == nil {
		t.Fatal("tampered signature must be rejected")
	}

	other := NewManager("other-secret", time.Hour, time.Hour)
	if _, err := other.VerifyAccessToken(raw); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestHashRefreshToken_Deterministic(t *testing.T) {
	m := NewManager("secret", time.Hour, time.Hour)

	if m.HashRefreshToken("abc") != m.HashRefreshToken("abc") {
		t.Fatal("hash must be deterministic")
	}
	if m.HashRefreshToken("abc") == m.HashRefreshToken("abd") {
		t.Fatal("different tokens must hash differently")
	}
}

package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if hash == "password123" {
		t.Fatalf("hash must not equal plaintext")
	}

	if err := h.CheckPassword(hash, "password123"); err != nil {
		t.Fatalf("expected password to verify: %v", err)
	}

	if err := h.CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestNewHasher_CostOutOfRangeUsesDefault(t *testing.T) {
	h := NewHasher(99)

	hash, err := h.HashPassword("x")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", cost)
	}
}

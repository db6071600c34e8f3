package utils

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestJobCursor_RoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	enc, err := EncodeJobCursor(at, "b3b0c7c4-6f6a-4b8f-9d0e-2f1f7c1f8a11")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeJobCursor(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.UpdatedAt.Equal(at) || got.ID != "b3b0c7c4-6f6a-4b8f-9d0e-2f1f7c1f8a11" {
		t.Fatalf("unexpected cursor: %+v", got)
	}
}

func TestDecodeJobCursor_Invalid(t *testing.T) {
	for _, in := range []string{"", "%%%", "e30"} { // e30 = "{}"
		if _, err := DecodeJobCursor(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestBuildProductsListCacheKey(t *testing.T) {
	none := BuildProductsListCacheKey(nil, nil)
	empty := BuildProductsListCacheKey(strPtr(""), nil)
	upper := BuildProductsListCacheKey(strPtr("Electronics"), nil)
	lower := BuildProductsListCacheKey(strPtr("electronics"), nil)

	if none == empty {
		t.Fatalf("absent and empty category must not share a key")
	}
	if upper == lower {
		t.Fatalf("category keys must be case-sensitive")
	}
	if BuildProductsListCacheKey(strPtr("a"), strPtr("b")) == BuildProductsListCacheKey(strPtr("b"), strPtr("a")) {
		t.Fatalf("category and search must not be interchangeable")
	}
}

func TestIsUUID(t *testing.T) {
	if !IsUUID("b3b0c7c4-6f6a-4b8f-9d0e-2f1f7c1f8a11") {
		t.Fatal("expected valid uuid")
	}
	if IsUUID("not-a-uuid") {
		t.Fatal("expected invalid uuid")
	}
}

package db

import (
	"context"
	"testing"

	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/geocoder89/storefront/internal/security"
	"golang.org/x/crypto/bcrypt"
)

func TestEnsureAdminUser_CreatesOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	hasher := security.NewHasher(bcrypt.MinCost)

	cfg := config.Config{
		AdminEmail:    "admin@example.com",
		AdminPassword: "s3cret-pass",
		AdminName:     "Admin",
		AdminRole:     user.RoleAdmin,
	}

	created, err := EnsureAdminUser(ctx, st, hasher, cfg)
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}

	created, err = EnsureAdminUser(ctx, st, hasher, cfg)
	if err != nil || created {
		t.Fatalf("second call: created=%v err=%v", created, err)
	}

	u, err := st.GetByEmail(ctx, cfg.AdminEmail)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u.Role != user.RoleAdmin {
		t.Fatalf("role = %q", u.Role)
	}
	if err := hasher.CheckPassword(u.PasswordHash, cfg.AdminPassword); err != nil {
		t.Fatalf("password does not verify: %v", err)
	}
}

func TestEnsureAdminUser_SkipsWithoutCredentials(t *testing.T) {
	created, err := EnsureAdminUser(context.Background(), memory.New(), security.NewHasher(bcrypt.MinCost), config.Config{})
	if err != nil || created {
		t.Fatalf("created=%v err=%v", created, err)
	}
}

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/domain/user"
)

// EnsureAdminUser creates the configured admin account once. It is a no-op
// when ADMIN_EMAIL or ADMIN_PASSWORD is unset or the email already exists.
func EnsureAdminUser(ctx context.Context, users auth.UserStore, hasher auth.PasswordHasher, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	_, err := users.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := hasher.HashPassword(cfg.AdminPassword)
	if err != nil {
		return false, err
	}

	role := cfg.AdminRole
	if role == "" {
		role = user.RoleAdmin
	}

	if _, err := users.CreateUser(ctx, user.New(cfg.AdminEmail, hash, cfg.AdminName, role)); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

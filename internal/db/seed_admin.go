package db

import (
	"context"
	"errors"

	"github.com/geocoder89/postsapi/internal/config"
	"github.com/geocoder89/postsapi/internal/domain/user"
	"github.com/geocoder89/postsapi/internal/security"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// EnsureAdminUser creates the configured admin account once. It is a no-op
// when ADMIN_EMAIL or ADMIN_PASSWORD is unset or the account already exists.
func EnsureAdminUser(ctx context.Context, store AdminStore, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	email := user.NormalizeEmail(cfg.AdminEmail)

	_, err := store.GetByEmail(ctx, email)

	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = store.Create(ctx, user.User{
		Name:         cfg.AdminName,
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
	})

	// another instance may have won the race
	if errors.Is(err, user.ErrEmailTaken) {
		return nil
	}

	return err
}

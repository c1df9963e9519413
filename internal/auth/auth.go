package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/Lixing-Zhang/storefront/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Authorizer decides whether a username/password pair may manage the catalog
type Authorizer interface {
	Authorize(ctx context.Context, username, password string) (bool, error)
}

// PasswordAuthorizer checks credentials against bcrypt hashes in the user store
type PasswordAuthorizer struct {
	users     repository.UserRepository
	dummyHash []byte
}

// NewPasswordAuthorizer creates an authorizer. cost is the bcrypt cost of the
// hash compared for unknown users, so lookups of missing names take as long
// as real ones.
func NewPasswordAuthorizer(users repository.UserRepository, cost int) (*PasswordAuthorizer, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), normalizeCost(cost))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password check: %w", err)
	}
	return &PasswordAuthorizer{users: users, dummyHash: dummy}, nil
}

func (a *PasswordAuthorizer) Authorize(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
			return false, nil
		}
		return false, fmt.Errorf("failed to look up user: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("stored hash for %q is unusable: %w", username, err)
	}
}

// HashPassword returns a bcrypt hash of password
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), normalizeCost(cost))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// EnsureAdmin seeds the administrator when the store holds no users yet.
// It reports whether a user was created.
func EnsureAdmin(ctx context.Context, users repository.UserRepository, username, password string, cost int, logger *slog.Logger) (bool, error) {
	count, err := users.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := HashPassword(password, cost)
	if err != nil {
		return false, err
	}
	if err := users.CreateUser(ctx, &models.User{Username: username, PasswordHash: hash}); err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.InfoContext(ctx, "admin user created", "username", username)
	return true, nil
}

func normalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}

package ports

import (
	"context"
	"time"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

// TokenService issues and validates stateless identity tokens.
type TokenService interface {
	Issue(username string) (token string, expiresAt time.Time, err error)
	// Validate returns the embedded username, or domain.ErrInvalidToken.
	Validate(token string) (string, error)
}

// PasswordHasher wraps the one-way password encoding primitive.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

package ports

import (
	"context"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

// UserRepository is the credential store.
type UserRepository interface {
	// FindByUsername returns domain.ErrUserNotFound when no user matches.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// Create persists a new user and returns it with its ID set. A username
	// collision yields domain.ErrUserExists and leaves the stored user untouched.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}

package ports

import (
	"context"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

// HabitRepository persists habits. Lookups that match nothing, including ids
// the backend cannot parse, return domain.ErrHabitNotFound.
type HabitRepository interface {
	Create(ctx context.Context, habit *domain.Habit) (*domain.Habit, error)
	FindByID(ctx context.Context, id string) (*domain.Habit, error)
	FindByUserAndID(ctx context.Context, userID, id string) (*domain.Habit, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Habit, error)
	// Update writes the streak fields of habit, matching on both ID and UserID.
	Update(ctx context.Context, habit *domain.Habit) error
	Delete(ctx context.Context, id string) error
}

package ports

import (
	"context"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

// HabitService exposes the owner-scoped habit operations. A nil principal
// yields domain.ErrUnauthenticated.
type HabitService interface {
	ListHabits(ctx context.Context, p *domain.Principal) ([]*domain.Habit, error)
	CreateHabit(ctx context.Context, p *domain.Principal, name string) (*domain.Habit, error)
	DeleteHabit(ctx context.Context, p *domain.Principal, id string) error
	CompleteHabit(ctx context.Context, p *domain.Principal, id string) (*domain.Habit, error)
}

// Serializer runs fn so that calls sharing a key never overlap.
type Serializer interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Locker guards a key across service replicas. The returned release func
// must be called once the critical section ends.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

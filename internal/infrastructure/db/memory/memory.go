// Package memory holds map-backed repositories for local runs and tests.
// Records are copied on the way in and out so callers never share state
// with the store.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

type UserRepository struct {
	mu         sync.RWMutex
	byUsername map[string]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byUsername: make(map[string]*domain.User)}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return nil, domain.ErrUserExists
	}
	stored := *user
	stored.ID = uuid.NewString()
	r.byUsername[user.Username] = &stored

	out := stored
	return &out, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUsername[username]
	return ok, nil
}

// Delete removes a user. Tokens already issued to them stop authenticating.
func (r *UserRepository) Delete(_ context.Context, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUsername, username)
}

func (r *UserRepository) Ping(context.Context) error { return nil }

type HabitRepository struct {
	mu     sync.RWMutex
	habits map[string]*domain.Habit
	order  []string
}

func NewHabitRepository() *HabitRepository {
	return &HabitRepository{habits: make(map[string]*domain.Habit)}
}

func copyHabit(h *domain.Habit) *domain.Habit {
	out := *h
	if h.LastCompletedDate != nil {
		d := *h.LastCompletedDate
		out.LastCompletedDate = &d
	}
	return &out
}

func (r *HabitRepository) Create(_ context.Context, habit *domain.Habit) (*domain.Habit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyHabit(habit)
	stored.ID = uuid.NewString()
	r.habits[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	return copyHabit(stored), nil
}

func (r *HabitRepository) FindByID(_ context.Context, id string) (*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.habits[id]
	if !ok {
		return nil, domain.ErrHabitNotFound
	}
	return copyHabit(h), nil
}

func (r *HabitRepository) FindByUserAndID(_ context.Context, userID, id string) (*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.habits[id]
	if !ok || h.UserID != userID {
		return nil, domain.ErrHabitNotFound
	}
	return copyHabit(h), nil
}

// ListByUser returns the user's habits in creation order.
func (r *HabitRepository) ListByUser(_ context.Context, userID string) ([]*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Habit{}
	for _, id := range r.order {
		if h, ok := r.habits[id]; ok && h.UserID == userID {
			out = append(out, copyHabit(h))
		}
	}
	return out, nil
}

func (r *HabitRepository) Update(_ context.Context, habit *domain.Habit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.habits[habit.ID]
	if !ok || stored.UserID != habit.UserID {
		return domain.ErrHabitNotFound
	}
	stored.CurrentStreak = habit.CurrentStreak
	stored.LongestStreak = habit.LongestStreak
	if habit.LastCompletedDate != nil {
		d := *habit.LastCompletedDate
		stored.LastCompletedDate = &d
	} else {
		stored.LastCompletedDate = nil
	}
	stored.UpdatedAt = habit.UpdatedAt
	return nil
}

func (r *HabitRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.habits[id]; !ok {
		return domain.ErrHabitNotFound
	}
	delete(r.habits, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

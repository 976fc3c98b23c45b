package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/streakup/habit-tracker/internal/core/domain"
	"github.com/streakup/habit-tracker/internal/core/ports"
)

// CompletionObserver is notified after every completion that reached the store
// or was recognised as a same-day repeat.
type CompletionObserver func(outcome domain.CompletionOutcome, habit *domain.Habit)

// HabitOption customises a HabitService.
type HabitOption func(*HabitService)

// WithClock overrides the time source used to resolve "today".
func WithClock(now func() time.Time) HabitOption {
	return func(s *HabitService) { s.now = now }
}

// WithLocation sets the zone whose calendar date counts as "today".
func WithLocation(loc *time.Location) HabitOption {
	return func(s *HabitService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithSerializer routes completions of the same habit through s.
func WithSerializer(ser ports.Serializer) HabitOption {
	return func(s *HabitService) {
		if ser != nil {
			s.serializer = ser
		}
	}
}

// WithLocker holds a cross-replica lock for the duration of a completion.
func WithLocker(l ports.Locker) HabitOption {
	return func(s *HabitService) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithCompletionObserver registers fn to be called after each completion.
func WithCompletionObserver(fn CompletionObserver) HabitOption {
	return func(s *HabitService) { s.observe = fn }
}

// HabitService implements ports.HabitService on top of a HabitRepository.
type HabitService struct {
	repo       ports.HabitRepository
	log        zerolog.Logger
	now        func() time.Time
	loc        *time.Location
	serializer ports.Serializer
	locker     ports.Locker
	observe    CompletionObserver
}

func NewHabitService(repo ports.HabitRepository, log zerolog.Logger, opts ...HabitOption) *HabitService {
	s := &HabitService{
		repo:       repo,
		log:        log,
		now:        time.Now,
		loc:        time.Local,
		serializer: inlineSerializer{},
		locker:     noopLocker{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HabitService) ListHabits(ctx context.Context, p *domain.Principal) ([]*domain.Habit, error) {
	if p == nil {
		return nil, domain.ErrUnauthenticated
	}
	habits, err := s.repo.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	if habits == nil {
		habits = []*domain.Habit{}
	}
	return habits, nil
}

func (s *HabitService) CreateHabit(ctx context.Context, p *domain.Principal, name string) (*domain.Habit, error) {
	if p == nil {
		return nil, domain.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	created, err := s.repo.Create(ctx, domain.NewHabit(p.UserID, name, s.now().UTC()))
	if err != nil {
		s.log.Error().Err(err).Str("user_id", p.UserID).Msg("failed to create habit")
		return nil, fmt.Errorf("create habit: %w", err)
	}

	s.log.Info().Str("habit_id", created.ID).Str("user_id", p.UserID).Msg("habit created")
	return created, nil
}

// DeleteHabit removes the habit only when it belongs to p. A foreign id is
// reported exactly like a missing one.
func (s *HabitService) DeleteHabit(ctx context.Context, p *domain.Principal, id string) error {
	if p == nil {
		return domain.ErrUnauthenticated
	}
	if _, err := s.repo.FindByUserAndID(ctx, p.UserID, id); err != nil {
		return wrapLookup("delete habit", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return wrapLookup("delete habit", err)
	}

	s.log.Info().Str("habit_id", id).Str("user_id", p.UserID).Msg("habit deleted")
	return nil
}

// CompleteHabit records a completion for today and returns the habit in its
// new state. Completing twice on the same day returns the habit unchanged.
// The cross-replica lock is taken on the caller's goroutine before the habit
// is queued, so waiting on it never stalls the shard serving other habits.
func (s *HabitService) CompleteHabit(ctx context.Context, p *domain.Principal, id string) (*domain.Habit, error) {
	if p == nil {
		return nil, domain.ErrUnauthenticated
	}

	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *domain.Habit
	err = s.serializer.Do(ctx, id, func(ctx context.Context) error {
		habit, err := s.repo.FindByUserAndID(ctx, p.UserID, id)
		if err != nil {
			return wrapLookup("complete habit", err)
		}

		today := civil.DateOf(s.now().In(s.loc))
		outcome := habit.Complete(today)
		if outcome != domain.CompletionRepeated {
			habit.UpdatedAt = s.now().UTC()
			if err := s.repo.Update(ctx, habit); err != nil {
				return wrapLookup("complete habit", err)
			}
		}

		s.log.Info().
			Str("habit_id", habit.ID).
			Str("user_id", p.UserID).
			Str("outcome", string(outcome)).
			Int("current_streak", habit.CurrentStreak).
			Int("longest_streak", habit.LongestStreak).
			Msg("habit completed")

		if s.observe != nil {
			s.observe(outcome, habit)
		}
		result = habit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// wrapLookup passes domain.ErrHabitNotFound through unwrapped.
func wrapLookup(op string, err error) error {
	if errors.Is(err, domain.ErrHabitNotFound) {
		return domain.ErrHabitNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

type inlineSerializer struct{}

func (inlineSerializer) Do(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub repository
// ---------------------------------------------------------------------------

type stubHabitRepo struct {
	habits    map[string]*domain.Habit
	order     []string
	nextID    int
	updates   int
	updateErr error
	listErr   error
}

func newStubHabitRepo() *stubHabitRepo {
	return &stubHabitRepo{habits: make(map[string]*domain.Habit)}
}

func cloneHabit(h *domain.Habit) *domain.Habit {
	clone := *h
	if h.LastCompletedDate != nil {
		d := *h.LastCompletedDate
		clone.LastCompletedDate = &d
	}
	return &clone
}

func (r *stubHabitRepo) Create(_ context.Context, h *domain.Habit) (*domain.Habit, error) {
	r.nextID++
	clone := cloneHabit(h)
	clone.ID = fmt.Sprintf("h%d", r.nextID)
	r.habits[clone.ID] = clone
	r.order = append(r.order, clone.ID)
	return cloneHabit(clone), nil
}

func (r *stubHabitRepo) FindByID(_ context.Context, id string) (*domain.Habit, error) {
	h, ok := r.habits[id]
	if !ok {
		return nil, domain.ErrHabitNotFound
	}
	return cloneHabit(h), nil
}

func (r *stubHabitRepo) FindByUserAndID(_ context.Context, userID, id string) (*domain.Habit, error) {
	h, ok := r.habits[id]
	if !ok || h.UserID != userID {
		return nil, domain.ErrHabitNotFound
	}
	return cloneHabit(h), nil
}

func (r *stubHabitRepo) ListByUser(_ context.Context, userID string) ([]*domain.Habit, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*domain.Habit
	for _, id := range r.order {
		if h, ok := r.habits[id]; ok && h.UserID == userID {
			out = append(out, cloneHabit(h))
		}
	}
	return out, nil
}

func (r *stubHabitRepo) Update(_ context.Context, h *domain.Habit) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.habits[h.ID]
	if !ok || stored.UserID != h.UserID {
		return domain.ErrHabitNotFound
	}
	r.updates++
	r.habits[h.ID] = cloneHabit(h)
	return nil
}

func (r *stubHabitRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.habits[id]; !ok {
		return domain.ErrHabitNotFound
	}
	delete(r.habits, id)
	return nil
}

type recordingSerializer struct {
	keys []string
}

func (s *recordingSerializer) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	s.keys = append(s.keys, key)
	return fn(ctx)
}

type stubLocker struct {
	err      error
	acquired int
	released int
	// inside reports whether Acquire ran while a serializer job was active.
	inside   *bool
	sawIn    bool
}

func (l *stubLocker) Acquire(context.Context, string) (func(), error) {
	if l.inside != nil && *l.inside {
		l.sawIn = true
	}
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

// trackingSerializer flags while a job runs.
type trackingSerializer struct {
	running bool
	calls   int
}

func (s *trackingSerializer) Do(ctx context.Context, _ string, fn func(context.Context) error) error {
	s.calls++
	s.running = true
	defer func() { s.running = false }()
	return fn(ctx)
}

var (
	alice = &domain.Principal{UserID: "u-alice", Username: "alice"}
	bob   = &domain.Principal{UserID: "u-bob", Username: "bob"}
)

func newTestHabitService(repo *stubHabitRepo, clock *fakeClock, opts ...HabitOption) *HabitService {
	opts = append([]HabitOption{WithClock(clock.Now), WithLocation(time.UTC)}, opts...)
	return NewHabitService(repo, zerolog.Nop(), opts...)
}

func TestHabitService_RequiresPrincipal(t *testing.T) {
	svc := newTestHabitService(newStubHabitRepo(), &fakeClock{t: time.Now()})
	ctx := context.Background()

	if _, err := svc.ListHabits(ctx, nil); err != domain.ErrUnauthenticated {
		t.Fatalf("ListHabits: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.CreateHabit(ctx, nil, "Run"); err != domain.ErrUnauthenticated {
		t.Fatalf("CreateHabit: expected ErrUnauthenticated, got %v", err)
	}
	if err := svc.DeleteHabit(ctx, nil, "h1"); err != domain.ErrUnauthenticated {
		t.Fatalf("DeleteHabit: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.CompleteHabit(ctx, nil, "h1"); err != domain.ErrUnauthenticated {
		t.Fatalf("CompleteHabit: expected ErrUnauthenticated, got %v", err)
	}
}

func TestHabitService_CreateHabit(t *testing.T) {
	repo := newStubHabitRepo()
	svc := newTestHabitService(repo, &fakeClock{t: time.Now()})

	h, err := svc.CreateHabit(context.Background(), alice, "  Run ")
	if err != nil {
		t.Fatalf("CreateHabit returned error: %v", err)
	}
	if h.ID == "" || h.UserID != alice.UserID || h.Name != "Run" {
		t.Fatalf("unexpected habit: %+v", h)
	}
	if h.CurrentStreak != 0 || h.LongestStreak != 0 || h.LastCompletedDate != nil {
		t.Fatalf("expected zero streaks and no completion, got %+v", h)
	}
}

func TestHabitService_CreateHabit_EmptyName(t *testing.T) {
	svc := newTestHabitService(newStubHabitRepo(), &fakeClock{t: time.Now()})

	if _, err := svc.CreateHabit(context.Background(), alice, "   "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestHabitService_ListHabits_OwnershipIsolation(t *testing.T) {
	repo := newStubHabitRepo()
	svc := newTestHabitService(repo, &fakeClock{t: time.Now()})
	ctx := context.Background()

	_, _ = svc.CreateHabit(ctx, alice, "Run")
	_, _ = svc.CreateHabit(ctx, alice, "Read")
	_, _ = svc.CreateHabit(ctx, bob, "Swim")

	aliceHabits, err := svc.ListHabits(ctx, alice)
	if err != nil {
		t.Fatalf("ListHabits returned error: %v", err)
	}
	if len(aliceHabits) != 2 || aliceHabits[0].Name != "Run" || aliceHabits[1].Name != "Read" {
		t.Fatalf("unexpected habits for alice: %+v", aliceHabits)
	}

	bobHabits, _ := svc.ListHabits(ctx, bob)
	if len(bobHabits) != 1 || bobHabits[0].Name != "Swim" {
		t.Fatalf("unexpected habits for bob: %+v", bobHabits)
	}
}

func TestHabitService_ListHabits_EmptyIsNotNil(t *testing.T) {
	svc := newTestHabitService(newStubHabitRepo(), &fakeClock{t: time.Now()})

	habits, err := svc.ListHabits(context.Background(), alice)
	if err != nil {
		t.Fatalf("ListHabits returned error: %v", err)
	}
	if habits == nil || len(habits) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", habits)
	}
}

func TestHabitService_ListHabits_StoreError(t *testing.T) {
	repo := newStubHabitRepo()
	repo.listErr = errors.New("db down")
	svc := newTestHabitService(repo, &fakeClock{t: time.Now()})

	if _, err := svc.ListHabits(context.Background(), alice); err == nil || !errors.Is(err, repo.listErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestHabitService_DeleteHabit(t *testing.T) {
	repo := newStubHabitRepo()
	svc := newTestHabitService(repo, &fakeClock{t: time.Now()})
	ctx := context.Background()

	h, _ := svc.CreateHabit(ctx, alice, "Run")

	if err := svc.DeleteHabit(ctx, bob, h.ID); err != domain.ErrHabitNotFound {
		t.Fatalf("expected ErrHabitNotFound for foreign habit, got %v", err)
	}
	if _, ok := repo.habits[h.ID]; !ok {
		t.Fatalf("foreign delete removed the habit")
	}

	if err := svc.DeleteHabit(ctx, alice, h.ID); err != nil {
		t.Fatalf("DeleteHabit returned error: %v", err)
	}
	if _, ok := repo.habits[h.ID]; ok {
		t.Fatalf("habit still present after delete")
	}

	if err := svc.DeleteHabit(ctx, alice, h.ID); err != domain.ErrHabitNotFound {
		t.Fatalf("expected ErrHabitNotFound on second delete, got %v", err)
	}
	if err := svc.DeleteHabit(ctx, alice, "does-not-exist"); err != domain.ErrHabitNotFound {
		t.Fatalf("expected ErrHabitNotFound for unknown id, got %v", err)
	}
}

func TestHabitService_CompleteHabit_Transitions(t *testing.T) {
	repo := newStubHabitRepo()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestHabitService(repo, clock)
	ctx := context.Background()

	h, _ := svc.CreateHabit(ctx, alice, "Run")
	d := civil.Date{Year: 2026, Month: time.March, Day: 10}

	steps := []struct {
		name             string
		at               time.Time
		current, longest int
		last             civil.Date
	}{
		{"first completion", clock.t, 1, 1, d},
		{"same day later", clock.t.Add(10 * time.Hour), 1, 1, d},
		{"next day", clock.t.Add(24 * time.Hour), 2, 2, d.AddDays(1)},
		{"day after", clock.t.Add(48 * time.Hour), 3, 3, d.AddDays(2)},
		{"after gap", clock.t.Add(6 * 24 * time.Hour), 1, 3, d.AddDays(6)},
		{"continue after reset", clock.t.Add(7 * 24 * time.Hour), 2, 3, d.AddDays(7)},
	}

	for _, step := range steps {
		clock.t = step.at
		got, err := svc.CompleteHabit(ctx, alice, h.ID)
		if err != nil {
			t.Fatalf("%s: CompleteHabit returned error: %v", step.name, err)
		}
		if got.CurrentStreak != step.current || got.LongestStreak != step.longest {
			t.Fatalf("%s: expected streaks %d/%d, got %d/%d", step.name, step.current, step.longest, got.CurrentStreak, got.LongestStreak)
		}
		if got.LastCompletedDate == nil || *got.LastCompletedDate != step.last {
			t.Fatalf("%s: expected last completed %v, got %v", step.name, step.last, got.LastCompletedDate)
		}
	}
}

func TestHabitService_CompleteHabit_SameDayDoesNotWrite(t *testing.T) {
	repo := newStubHabitRepo()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestHabitService(repo, clock)
	ctx := context.Background()

	h, _ := svc.CreateHabit(ctx, alice, "Run")
	first, _ := svc.CompleteHabit(ctx, alice, h.ID)
	second, err := svc.CompleteHabit(ctx, alice, h.ID)
	if err != nil {
		t.Fatalf("CompleteHabit returned error: %v", err)
	}

	if repo.updates != 1 {
		t.Fatalf("expected exactly one store write, got %d", repo.updates)
	}
	if *first.LastCompletedDate != *second.LastCompletedDate || first.CurrentStreak != second.CurrentStreak {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestHabitService_CompleteHabit_UsesConfiguredZone(t *testing.T) {
	repo := newStubHabitRepo()
	tokyo := time.FixedZone("JST", 9*60*60)
	// 20:00 UTC on March 10 is already March 11 in Tokyo.
	clock := &fakeClock{t: time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)}
	svc := newTestHabitService(repo, clock, WithLocation(tokyo))

	h, _ := svc.CreateHabit(context.Background(), alice, "Run")
	got, err := svc.CompleteHabit(context.Background(), alice, h.ID)
	if err != nil {
		t.Fatalf("CompleteHabit returned error: %v", err)
	}
	want := civil.Date{Year: 2026, Month: time.March, Day: 11}
	if *got.LastCompletedDate != want {
		t.Fatalf("expected %v, got %v", want, *got.LastCompletedDate)
	}
}

func TestHabitService_CompleteHabit_ForeignHabit(t *testing.T) {
	repo := newStubHabitRepo()
	svc := newTestHabitService(repo, &fakeClock{t: time.Now()})
	ctx := context.Background()

	h, _ := svc.CreateHabit(ctx, alice, "Run")

	if _, err := svc.CompleteHabit(ctx, bob, h.ID); err != domain.ErrHabitNotFound {
		t.Fatalf("expected ErrHabitNotFound, got %v", err)
	}
	if repo.habits[h.ID].CurrentStreak != 0 {
		t.Fatalf("foreign completion mutated the habit")
	}
}

func TestHabitService_CompleteHabit_StoreError(t *testing.T) {
	repo := newStubHabitRepo()
	svc := newTestHabitService(repo, &fakeClock{t: time.Now()})
	ctx := context.Background()

	h, _ := svc.CreateHabit(ctx, alice, "Run")
	repo.updateErr = errors.New("write concern failed")

	_, err := svc.CompleteHabit(ctx, alice, h.ID)
	if err == nil || !errors.Is(err, repo.updateErr) {
		t.Fatalf("expected wrapped update error, got %v", err)
	}
}

func TestHabitService_CompleteHabit_SerializesAndLocks(t *testing.T) {
	repo := newStubHabitRepo()
	ser := &recordingSerializer{}
	locker := &stubLocker{}
	var outcomes []domain.CompletionOutcome
	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestHabitService(repo, clock,
		WithSerializer(ser),
		WithLocker(locker),
		WithCompletionObserver(func(o domain.CompletionOutcome, _ *domain.Habit) {
			outcomes = append(outcomes, o)
		}),
	)
	ctx := context.Background()

	h, _ := svc.CreateHabit(ctx, alice, "Run")
	_, _ = svc.CompleteHabit(ctx, alice, h.ID)
	_, _ = svc.CompleteHabit(ctx, alice, h.ID)

	if len(ser.keys) != 2 || ser.keys[0] != h.ID {
		t.Fatalf("expected serializer keyed by habit id, got %v", ser.keys)
	}
	if locker.acquired != 2 || locker.released != 2 {
		t.Fatalf("expected balanced lock usage, got %d/%d", locker.acquired, locker.released)
	}
	if len(outcomes) != 2 || outcomes[0] != domain.CompletionStarted || outcomes[1] != domain.CompletionRepeated {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
}

func TestHabitService_CompleteHabit_LockBusy(t *testing.T) {
	repo := newStubHabitRepo()
	locker := &stubLocker{err: domain.ErrCompletionInProgress}
	svc := newTestHabitService(repo, &fakeClock{t: time.Now()}, WithLocker(locker))
	ctx := context.Background()

	h, _ := svc.CreateHabit(ctx, alice, "Run")
	if _, err := svc.CompleteHabit(ctx, alice, h.ID); !errors.Is(err, domain.ErrCompletionInProgress) {
		t.Fatalf("expected ErrCompletionInProgress, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("expected no write while lock is held elsewhere")
	}
}

func TestHabitService_CompleteHabit_LocksOutsideSerializer(t *testing.T) {
	repo := newStubHabitRepo()
	ser := &trackingSerializer{}
	locker := &stubLocker{inside: &ser.running}
	svc := newTestHabitService(repo, &fakeClock{t: time.Now()}, WithSerializer(ser), WithLocker(locker))
	ctx := context.Background()

	h, _ := svc.CreateHabit(ctx, alice, "Run")
	if _, err := svc.CompleteHabit(ctx, alice, h.ID); err != nil {
		t.Fatalf("CompleteHabit returned error: %v", err)
	}
	if locker.sawIn {
		t.Fatal("lock must be acquired before the completion is queued")
	}

	busy := &stubLocker{err: domain.ErrCompletionInProgress}
	ser2 := &trackingSerializer{}
	svc = newTestHabitService(repo, &fakeClock{t: time.Now()}, WithSerializer(ser2), WithLocker(busy))
	if _, err := svc.CompleteHabit(ctx, alice, h.ID); !errors.Is(err, domain.ErrCompletionInProgress) {
		t.Fatalf("expected ErrCompletionInProgress, got %v", err)
	}
	if ser2.calls != 0 {
		t.Fatalf("a busy lock must not occupy the serializer, got %d calls", ser2.calls)
	}
}

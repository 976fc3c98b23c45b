package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

const habitColumns = `id, user_id, name, current_streak, longest_streak, last_completed_date, created_at, updated_at`

type HabitRepository struct {
	db DBTX
}

func NewHabitRepository(db DBTX) *HabitRepository {
	return &HabitRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (*domain.Habit, error) {
	h := &domain.Habit{}
	var last sql.NullTime
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.CurrentStreak, &h.LongestStreak, &last, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	if last.Valid {
		d := civil.DateOf(last.Time)
		h.LastCompletedDate = &d
	}
	return h, nil
}

// dateArg turns a calendar date into a DATE parameter; nil stays NULL.
func dateArg(d *civil.Date) any {
	if d == nil {
		return nil
	}
	return d.In(time.UTC)
}

// validID reports whether id could name a row. Anything else is treated as
// not found without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *HabitRepository) Create(ctx context.Context, h *domain.Habit) (*domain.Habit, error) {
	query :=
		`INSERT INTO habits (` + habitColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	created := *h
	created.ID = uuid.NewString()
	created.CreatedAt = created.CreatedAt.UTC()
	created.UpdatedAt = created.UpdatedAt.UTC()

	_, err := r.db.ExecContext(ctx, query,
		created.ID, created.UserID, created.Name, created.CurrentStreak, created.LongestStreak,
		dateArg(created.LastCompletedDate), created.CreatedAt, created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &created, nil
}

func (r *HabitRepository) FindByID(ctx context.Context, id string) (*domain.Habit, error) {
	if !validID(id) {
		return nil, domain.ErrHabitNotFound
	}
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *HabitRepository) FindByUserAndID(ctx context.Context, userID, id string) (*domain.Habit, error) {
	if !validID(id) || !validID(userID) {
		return nil, domain.ErrHabitNotFound
	}
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1 AND user_id = $2`
	return r.findOne(ctx, query, id, userID)
}

func (r *HabitRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Habit, error) {
	h, err := scanHabit(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrHabitNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return h, nil
}

func (r *HabitRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Habit, error) {
	habits := []*domain.Habit{}
	if !validID(userID) {
		return habits, nil
	}

	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return habits, nil
}

func (r *HabitRepository) Update(ctx context.Context, h *domain.Habit) error {
	if !validID(h.ID) || !validID(h.UserID) {
		return domain.ErrHabitNotFound
	}

	query :=
		`UPDATE habits
		 SET current_streak = $1, longest_streak = $2, last_completed_date = $3, updated_at = $4
		 WHERE id = $5 AND user_id = $6`

	res, err := r.db.ExecContext(ctx, query,
		h.CurrentStreak, h.LongestStreak, dateArg(h.LastCompletedDate), h.UpdatedAt.UTC(), h.ID, h.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *HabitRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrHabitNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM habits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

package domain

import (
	"errors"
	"time"

	"cloud.google.com/go/civil"
)

var (
	ErrHabitNotFound        = errors.New("habit not found")
	ErrCompletionInProgress = errors.New("habit completion already in progress")
)

// CompletionOutcome names the transition taken by Habit.Complete.
type CompletionOutcome string

const (
	// CompletionRepeated means the habit was already completed today; nothing changed.
	CompletionRepeated CompletionOutcome = "repeated"
	// CompletionStarted means the habit had never been completed before.
	CompletionStarted CompletionOutcome = "started"
	// CompletionContinued means the habit was completed yesterday and the streak grew.
	CompletionContinued CompletionOutcome = "continued"
	// CompletionReset means at least one day was missed and the streak restarted.
	CompletionReset CompletionOutcome = "reset"
)

// Habit is a tracked daily habit owned by exactly one user.
type Habit struct {
	ID                string      `json:"id"`
	UserID            string      `json:"userId"`
	Name              string      `json:"name"`
	CurrentStreak     int         `json:"currentStreak"`
	LongestStreak     int         `json:"longestStreak"`
	LastCompletedDate *civil.Date `json:"lastCompletedDate"`
	CreatedAt         time.Time   `json:"-"`
	UpdatedAt         time.Time   `json:"-"`
}

// NewHabit returns a fresh habit for userID with no completions.
func NewHabit(userID, name string, now time.Time) *Habit {
	return &Habit{
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete records a completion on today. The next state depends only on the
// gap between today and LastCompletedDate.
func (h *Habit) Complete(today civil.Date) CompletionOutcome {
	var outcome CompletionOutcome
	switch {
	case h.LastCompletedDate == nil:
		h.CurrentStreak = 1
		outcome = CompletionStarted
	case *h.LastCompletedDate == today:
		return CompletionRepeated
	case *h.LastCompletedDate == today.AddDays(-1):
		h.CurrentStreak++
		outcome = CompletionContinued
	default:
		h.CurrentStreak = 1
		outcome = CompletionReset
	}

	if h.CurrentStreak > h.LongestStreak {
		h.LongestStreak = h.CurrentStreak
	}
	h.LastCompletedDate = &today
	return outcome
}

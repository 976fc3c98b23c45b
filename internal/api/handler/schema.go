package handler

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type createHabitRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// habitResponse documents the Habit JSON shape for the API docs.
type habitResponse struct {
	ID                string  `json:"id"`
	UserID            string  `json:"userId"`
	Name              string  `json:"name"`
	CurrentStreak     int     `json:"currentStreak"`
	LongestStreak     int     `json:"longestStreak"`
	LastCompletedDate *string `json:"lastCompletedDate" example:"2024-03-04"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

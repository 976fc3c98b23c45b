package domain

import (
	"errors"
	"time"
)

var (
	ErrUserExists         = errors.New("username is already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
)

// User is the persisted account record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Disabled     bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Credentials is the part of a User an authentication layer is allowed to see.
type Credentials struct {
	Username     string
	PasswordHash string
	Enabled      bool
}

func (u *User) Credentials() Credentials {
	return Credentials{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Enabled:      !u.Disabled,
	}
}

// Principal returns the request identity for this user.
func (u *User) Principal() *Principal {
	return &Principal{UserID: u.ID, Username: u.Username}
}

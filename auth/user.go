package auth

import (
	"context"
	"errors"
	"time"

	"github.com/cardduel/server/game/engine"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("username must be at least 3 characters")
	ErrInvalidToken       = errors.New("invalid token")
)

// User is a registered or guest account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	IsGuest      bool
	Stats        engine.UserStats
	LastLogin    *time.Time
	CreatedAt    time.Time
}

// Identity is who a verified token belongs to.
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"isGuest,omitempty"`
}

// Profile is the public view of an account with its derived win rate.
type Profile struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	IsGuest   bool             `json:"isGuest"`
	Stats     engine.UserStats `json:"stats"`
	WinRate   float64          `json:"winRate"`
	LastLogin *time.Time       `json:"lastLogin,omitempty"`
}

// UserRepository persists accounts. Create fails with ErrUsernameTaken and
// lookups with ErrUserNotFound.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

func (u *User) profile() *Profile {
	return &Profile{
		ID:        u.ID,
		Username:  u.Username,
		IsGuest:   u.IsGuest,
		Stats:     u.Stats,
		WinRate:   u.Stats.WinRate(),
		LastLogin: u.LastLogin,
	}
}

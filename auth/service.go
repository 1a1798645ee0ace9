package auth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cardduel/server/logger"
)

const (
	minUsernameLength = 3
	guestAttempts     = 5
)

// Session is what a successful register, login or guest call returns.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Identity  `json:"user"`
}

// Service handles registration, login and guest accounts
type Service struct {
	users  UserRepository
	tokens *TokenManager
	now    func() time.Time
	cost   int
}

// NewService creates an account service
func NewService(users UserRepository, tokens *TokenManager) *Service {
	return &Service{users: users, tokens: tokens, now: time.Now, cost: bcrypt.DefaultCost}
}

// Tokens returns the token manager used to verify sessions
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Register creates a password account
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLength {
		return nil, ErrInvalidUsername
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		LastLogin:    &now,
		CreatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	logger.Info(ctx).Str("user_id", u.ID).Str("username", u.Username).Msg("User registered")
	return s.session(u)
}

// Login checks a password and stamps the last login time
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.IsGuest || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, u.ID, s.now()); err != nil {
		logger.Warn(ctx).Err(err).Str("user_id", u.ID).Msg("Failed to update last login")
	}
	return s.session(u)
}

// Guest creates a throwaway account named Guest0..Guest9999
func (s *Service) Guest(ctx context.Context) (*Session, error) {
	now := s.now()
	for i := 0; i < guestAttempts; i++ {
		u := &User{
			ID:        uuid.NewString(),
			Username:  fmt.Sprintf("Guest%d", rand.Intn(10000)),
			IsGuest:   true,
			LastLogin: &now,
			CreatedAt: now,
		}
		err := s.users.Create(ctx, u)
		if errors.Is(err, ErrUsernameTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		logger.Debug(ctx).Str("user_id", u.ID).Str("username", u.Username).Msg("Guest created")
		return s.session(u)
	}
	return nil, fmt.Errorf("no free guest name after %d attempts: %w", guestAttempts, ErrUsernameTaken)
}

// Profile returns the account behind userID
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.profile(), nil
}

func (s *Service) session(u *User) (*Session, error) {
	id := Identity{UserID: u.ID, Username: u.Username, IsGuest: u.IsGuest}
	token, exp, err := s.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: id}, nil
}

package service

import (
	"errors"
	"fmt"

	"github.com/cardduel/server/game/engine"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPlayerNotFound   = fmt.Errorf("player not in game: %w", ErrNotFound)
	ErrInvalidCard      = engine.ErrInvalidCard
	ErrNoDrawsRemaining = engine.ErrNoDrawsRemaining
	ErrGameFinished     = errors.New("game already finished")
	ErrPersistence      = errors.New("persistence failure")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// GameError is returned by every GameService operation. It names the
// operation and session so the caller can report it to the right connection.
type GameError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *GameError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *GameError) Unwrap() error { return e.Err }

func opError(op, sessionID string, err error) error {
	return &GameError{Op: op, SessionID: sessionID, Err: err}
}

func persistenceError(op, sessionID string, err error) error {
	return opError(op, sessionID, fmt.Errorf("%w: %w", ErrPersistence, err))
}

// UserMessage renders err for a player. Persistence and unknown failures are
// reported generically.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrPlayerNotFound):
		return "Player not found in game"
	case errors.Is(err, ErrNotFound):
		return "Game not found"
	case errors.Is(err, ErrInvalidCard):
		return "Card not found"
	case errors.Is(err, ErrNoDrawsRemaining):
		return "No draws remaining"
	case errors.Is(err, ErrGameFinished):
		return "Game is already finished"
	case errors.Is(err, ErrInvalidArgument):
		var ge *GameError
		if errors.As(err, &ge) {
			return ge.Err.Error()
		}
		return err.Error()
	default:
		return "Something went wrong"
	}
}

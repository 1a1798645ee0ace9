package service

import (
	"context"

	"github.com/cardduel/server/game/engine"
)

// GameService defines all session operations
type GameService interface {
	// Session lifecycle
	CreateGame(ctx context.Context, player1ID, player2ID string, isPrivate bool) (*engine.GameRecord, error)
	GetGame(ctx context.Context, sessionID string) (*engine.GameRecord, error)
	GetGameByRoomCode(ctx context.Context, roomCode string) (*engine.GameRecord, error)
	EndGame(ctx context.Context, sessionID, winnerID string) (*EndResult, error)

	// Player actions
	PlayCard(ctx context.Context, sessionID, userID string, cardIndex int) (*PlayResult, error)
	DrawCards(ctx context.Context, sessionID, userID string, count int) (*DrawResult, error)

	// Reporting
	PlayerStats(ctx context.Context, userID string) (*engine.PlayerStats, error)
	PlayerHistory(ctx context.Context, userID string, limit int) ([]*engine.GameHistory, error)
}

// GameRepository is the durable store for game records. Implementations
// return an error wrapping ErrNotFound for unknown ids and codes.
type GameRepository interface {
	FindByID(ctx context.Context, id string) (*engine.GameRecord, error)
	FindByRoomCode(ctx context.Context, code string) (*engine.GameRecord, error)
	RoomCodeTaken(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, rec *engine.GameRecord) error
}

// SessionStore caches committed records of active sessions. Values handed
// out by Get are shared and must not be mutated.
type SessionStore interface {
	Get(ctx context.Context, id string) (*engine.GameRecord, error)
	Put(rec *engine.GameRecord)
	Remove(id string)
}

// HistoryRecorder writes the end-of-game snapshot and stats. Record must be
// idempotent per game id: a second call returns the stored snapshot.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *engine.GameRecord) (*engine.GameHistory, error)
	Recorded(ctx context.Context, gameID string) (bool, error)
	PlayerStats(ctx context.Context, userID string) (*engine.PlayerStats, error)
	PlayerHistory(ctx context.Context, userID string, limit int) ([]*engine.GameHistory, error)
}

package db

import (
	"time"

	"github.com/cardduel/server/auth"
	"github.com/cardduel/server/game/engine"
)

// GameModel is the row holding a game record. Decks and rounds are stored
// as JSON columns.
type GameModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Version     int64
	Player1ID   string          `gorm:"size:64;index"`
	Player2ID   string          `gorm:"size:64;index"`
	Players     []engine.Player `gorm:"serializer:json"`
	CurrentTurn string          `gorm:"size:64"`
	Status      string          `gorm:"size:16;index"`
	Rounds      []engine.Round  `gorm:"serializer:json"`
	Winner      string          `gorm:"size:64"`
	RoomCode    *string         `gorm:"size:6;uniqueIndex"`
	IsPrivate   bool
	StartTime   time.Time
	EndTime     *time.Time
	UpdatedAt   time.Time
}

func (GameModel) TableName() string { return "games" }

func toGameModel(rec *engine.GameRecord) *GameModel {
	m := &GameModel{
		ID:          rec.ID,
		Version:     rec.Version,
		Player1ID:   rec.Players[0].UserID,
		Player2ID:   rec.Players[1].UserID,
		Players:     rec.Players[:],
		CurrentTurn: rec.CurrentTurn,
		Status:      string(rec.Status),
		Rounds:      rec.Rounds,
		Winner:      rec.Winner,
		IsPrivate:   rec.IsPrivate,
		StartTime:   rec.StartTime,
		EndTime:     rec.EndTime,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.RoomCode != "" {
		code := rec.RoomCode
		m.RoomCode = &code
	}
	return m
}

func (m *GameModel) toRecord() *engine.GameRecord {
	rec := &engine.GameRecord{
		ID:          m.ID,
		Version:     m.Version,
		CurrentTurn: m.CurrentTurn,
		Status:      engine.Status(m.Status),
		Rounds:      m.Rounds,
		Winner:      m.Winner,
		IsPrivate:   m.IsPrivate,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		UpdatedAt:   m.UpdatedAt,
	}
	copy(rec.Players[:], m.Players)
	if rec.Rounds == nil {
		rec.Rounds = []engine.Round{}
	}
	if m.RoomCode != nil {
		rec.RoomCode = *m.RoomCode
	}
	return rec
}

// HistoryModel is one finished game. GameID is unique so a game can only be
// recorded once.
type HistoryModel struct {
	ID             string                 `gorm:"primaryKey;size:64"`
	GameID         string                 `gorm:"size:64;uniqueIndex"`
	WinnerID       string                 `gorm:"size:64;index"`
	Players        []engine.HistoryPlayer `gorm:"serializer:json"`
	Rounds         []engine.Round         `gorm:"serializer:json"`
	Duration       float64
	TotalRounds    int
	WasPrivate     bool
	JokersPlayed   int
	UpgradesPlayed int
	StartTime      time.Time
	EndTime        time.Time `gorm:"index"`
	CreatedAt      time.Time
}

func (HistoryModel) TableName() string { return "game_histories" }

// HistoryPlayerModel links a participant to a history row for per-player
// queries.
type HistoryPlayerModel struct {
	HistoryID string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"primaryKey;size:64;index"`
	Won       bool
}

func (HistoryPlayerModel) TableName() string { return "history_players" }

func toHistoryModel(h *engine.GameHistory) *HistoryModel {
	return &HistoryModel{
		ID:             h.ID,
		GameID:         h.GameID,
		WinnerID:       h.WinnerID,
		Players:        h.Players,
		Rounds:         h.Rounds,
		Duration:       h.Duration,
		TotalRounds:    h.TotalRounds,
		WasPrivate:     h.WasPrivate,
		JokersPlayed:   h.SpecialCards.JokersPlayed,
		UpgradesPlayed: h.SpecialCards.UpgradesPlayed,
		StartTime:      h.StartTime,
		EndTime:        h.EndTime,
	}
}

func (m *HistoryModel) toHistory() *engine.GameHistory {
	return &engine.GameHistory{
		ID:          m.ID,
		GameID:      m.GameID,
		Players:     m.Players,
		WinnerID:    m.WinnerID,
		Rounds:      m.Rounds,
		Duration:    m.Duration,
		TotalRounds: m.TotalRounds,
		WasPrivate:  m.WasPrivate,
		SpecialCards: engine.SpecialCards{
			JokersPlayed:   m.JokersPlayed,
			UpgradesPlayed: m.UpgradesPlayed,
		},
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
	}
}

// UserModel is an account row with its win/loss counters.
type UserModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string
	IsGuest      bool
	GamesPlayed  int
	Wins         int
	Losses       int
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

func toUserModel(u *auth.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsGuest:      u.IsGuest,
		GamesPlayed:  u.Stats.GamesPlayed,
		Wins:         u.Stats.Wins,
		Losses:       u.Stats.Losses,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
	}
}

func (m *UserModel) toUser() *auth.User {
	return &auth.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		IsGuest:      m.IsGuest,
		Stats: engine.UserStats{
			GamesPlayed: m.GamesPlayed,
			Wins:        m.Wins,
			Losses:      m.Losses,
		},
		LastLogin: m.LastLogin,
		CreatedAt: m.CreatedAt,
	}
}

package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/history"
	"github.com/cardduel/server/game/service"
)

// HistoryRepository implements history.Repository on GORM
type HistoryRepository struct {
	db *gorm.DB
}

var _ history.Repository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record writes the snapshot, its participants and the account counters in
// one transaction. Participants without an account only get the snapshot.
func (r *HistoryRepository) Record(ctx context.Context, h *engine.GameHistory) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&HistoryModel{}).Where("game_id = ?", h.GameID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return history.ErrAlreadyRecorded
		}

		if err := tx.Create(toHistoryModel(h)).Error; err != nil {
			return err
		}

		for _, p := range h.Players {
			won := p.UserID == h.WinnerID
			if err := tx.Create(&HistoryPlayerModel{HistoryID: h.ID, UserID: p.UserID, Won: won}).Error; err != nil {
				return err
			}

			updates := map[string]interface{}{
				"games_played": gorm.Expr("games_played + ?", 1),
			}
			if won {
				updates["wins"] = gorm.Expr("wins + ?", 1)
			} else {
				updates["losses"] = gorm.Expr("losses + ?", 1)
			}
			if err := tx.Model(&UserModel{}).Where("id = ?", p.UserID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, history.ErrAlreadyRecorded), errors.Is(err, gorm.ErrDuplicatedKey):
		return history.ErrAlreadyRecorded
	default:
		return fmt.Errorf("failed to record history: %w", err)
	}
}

// FindByGameID loads the snapshot of a game
func (r *HistoryRepository) FindByGameID(ctx context.Context, gameID string) (*engine.GameHistory, error) {
	var m HistoryModel
	if err := r.db.WithContext(ctx).First(&m, "game_id = ?", gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("history for game %s: %w", gameID, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get history for game %s: %w", gameID, err)
	}
	return m.toHistory(), nil
}

type playerStatsRow struct {
	TotalGames          int
	Wins                int
	AvgDuration         float64
	TotalJokersPlayed   int
	TotalUpgradesPlayed int
}

// PlayerStats aggregates every snapshot userID took part in
func (r *HistoryRepository) PlayerStats(ctx context.Context, userID string) (*engine.PlayerStats, error) {
	var row playerStatsRow
	err := r.db.WithContext(ctx).
		Table("game_histories AS h").
		Select(`COUNT(*) AS total_games,
			COALESCE(SUM(CASE WHEN p.won THEN 1 ELSE 0 END), 0) AS wins,
			COALESCE(AVG(h.duration), 0) AS avg_duration,
			COALESCE(SUM(h.jokers_played), 0) AS total_jokers_played,
			COALESCE(SUM(h.upgrades_played), 0) AS total_upgrades_played`).
		Joins("JOIN history_players AS p ON p.history_id = h.id").
		Where("p.user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate player stats: %w", err)
	}
	return &engine.PlayerStats{
		TotalGames:          row.TotalGames,
		Wins:                row.Wins,
		AvgDuration:         row.AvgDuration,
		TotalJokersPlayed:   row.TotalJokersPlayed,
		TotalUpgradesPlayed: row.TotalUpgradesPlayed,
	}, nil
}

// ListByPlayer returns userID's snapshots, newest first
func (r *HistoryRepository) ListByPlayer(ctx context.Context, userID string, limit int) ([]*engine.GameHistory, error) {
	var models []HistoryModel
	err := r.db.WithContext(ctx).
		Joins("JOIN history_players AS p ON p.history_id = game_histories.id").
		Where("p.user_id = ?", userID).
		Order("game_histories.end_time DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list player history: %w", err)
	}

	out := make([]*engine.GameHistory, len(models))
	for i := range models {
		out[i] = models[i].toHistory()
	}
	return out, nil
}

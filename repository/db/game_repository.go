package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/service"
)

// GameRepository implements service.GameRepository on GORM
type GameRepository struct {
	db *gorm.DB
}

var _ service.GameRepository = (*GameRepository)(nil)

// NewGameRepository creates a new game repository
func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{db: db}
}

// FindByID loads a game record
func (r *GameRepository) FindByID(ctx context.Context, id string) (*engine.GameRecord, error) {
	var m GameModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("game %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return m.toRecord(), nil
}

// FindByRoomCode loads a private game by its room code
func (r *GameRepository) FindByRoomCode(ctx context.Context, code string) (*engine.GameRecord, error) {
	var m GameModel
	if err := r.db.WithContext(ctx).Where("room_code = ? AND is_private = ?", code, true).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", code, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get game by room code: %w", err)
	}
	return m.toRecord(), nil
}

// RoomCodeTaken reports whether any game already uses code
func (r *GameRepository) RoomCodeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&GameModel{}).Where("room_code = ?", code).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check room code: %w", err)
	}
	return count > 0, nil
}

// Save inserts or fully replaces a game record
func (r *GameRepository) Save(ctx context.Context, rec *engine.GameRecord) error {
	m := toGameModel(rec)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	return nil
}

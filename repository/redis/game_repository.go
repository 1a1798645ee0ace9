// Package redis stores live game records in Redis as JSON documents with a
// rolling expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardduel/server/config"
	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/service"
)

const (
	gameKeyPrefix = "cardduel:game:"
	roomKeyPrefix = "cardduel:room:"
)

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// GameRepository implements service.GameRepository using Redis
type GameRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ service.GameRepository = (*GameRepository)(nil)

// NewGameRepository creates a Redis game repository. Every save refreshes
// the record's expiry to ttl.
func NewGameRepository(rdb *redis.Client, ttl time.Duration) *GameRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &GameRepository{rdb: rdb, ttl: ttl}
}

func gameKey(id string) string   { return gameKeyPrefix + id }
func roomKey(code string) string { return roomKeyPrefix + code }

// FindByID loads a game record
func (r *GameRepository) FindByID(ctx context.Context, id string) (*engine.GameRecord, error) {
	data, err := r.rdb.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("game %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	var rec engine.GameRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode game %s: %w", id, err)
	}
	return &rec, nil
}

// FindByRoomCode resolves a room code to its private game
func (r *GameRepository) FindByRoomCode(ctx context.Context, code string) (*engine.GameRecord, error) {
	id, err := r.rdb.Get(ctx, roomKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("room %s: %w", code, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return r.FindByID(ctx, id)
}

// RoomCodeTaken reports whether code maps to a stored game
func (r *GameRepository) RoomCodeTaken(ctx context.Context, code string) (bool, error) {
	n, err := r.rdb.Exists(ctx, roomKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check room code: %w", err)
	}
	return n > 0, nil
}

// Save writes the record and its room index in one round trip
func (r *GameRepository) Save(ctx context.Context, rec *engine.GameRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode game %s: %w", rec.ID, err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, gameKey(rec.ID), data, r.ttl)
		if rec.IsPrivate && rec.RoomCode != "" {
			pipe.Set(ctx, roomKey(rec.RoomCode), rec.ID, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardduel/server/config"
	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/service"
)

func newTestRepo(t *testing.T) *GameRepository {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb, err := NewClient(context.Background(), config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return NewGameRepository(rdb, time.Minute)
}

func TestGameRepository_SaveAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id := uuid.NewString()
	rec := engine.NewGameRecord(id, "alice", "bob", engine.NewDeckFactory(3), time.Now().UTC())
	rec.IsPrivate = true
	rec.RoomCode = id[:6]
	require.NoError(t, repo.Save(ctx, rec))
	t.Cleanup(func() { repo.rdb.Del(ctx, gameKey(id), roomKey(rec.RoomCode)) })

	loaded, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec.Players, loaded.Players)

	byRoom, err := repo.FindByRoomCode(ctx, rec.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, id, byRoom.ID)

	taken, err := repo.RoomCodeTaken(ctx, rec.RoomCode)
	require.NoError(t, err)
	assert.True(t, taken)

	ttl, err := repo.rdb.TTL(ctx, gameKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestGameRepository_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = repo.FindByRoomCode(ctx, "NOPE-"+uuid.NewString())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

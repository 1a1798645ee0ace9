package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/service"
	"github.com/cardduel/server/game/session"
)

// MockGameRepository implements service.GameRepository in memory
type MockGameRepository struct {
	mu      sync.Mutex
	games   map[string]*engine.GameRecord
	saves   int
	failing atomic.Bool
}

func NewMockGameRepository() *MockGameRepository {
	return &MockGameRepository{games: make(map[string]*engine.GameRecord)}
}

func (m *MockGameRepository) FindByID(ctx context.Context, id string) (*engine.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, service.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (m *MockGameRepository) FindByRoomCode(ctx context.Context, code string) (*engine.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.games {
		if rec.IsPrivate && rec.RoomCode == code {
			return rec.Clone(), nil
		}
	}
	return nil, fmt.Errorf("room %s: %w", code, service.ErrNotFound)
}

func (m *MockGameRepository) RoomCodeTaken(ctx context.Context, code string) (bool, error) {
	_, err := m.FindByRoomCode(ctx, code)
	return err == nil, nil
}

func (m *MockGameRepository) Save(ctx context.Context, rec *engine.GameRecord) error {
	if m.failing.Load() {
		return errors.New("disk on fire")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[rec.ID] = rec.Clone()
	m.saves++
	return nil
}

func (m *MockGameRepository) stored(id string) *engine.GameRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.games[id]
}

// MockRecorder implements service.HistoryRecorder, idempotent per game
type MockRecorder struct {
	mu        sync.Mutex
	histories map[string]*engine.GameHistory
	stats     map[string]*engine.UserStats
	calls     int
	failing   bool
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		histories: make(map[string]*engine.GameHistory),
		stats:     make(map[string]*engine.UserStats),
	}
}

func (m *MockRecorder) Record(ctx context.Context, rec *engine.GameRecord) (*engine.GameHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failing {
		return nil, errors.New("history store down")
	}
	if h, ok := m.histories[rec.ID]; ok {
		return h, nil
	}
	h := engine.BuildHistory("h-"+rec.ID, rec)
	m.histories[rec.ID] = h
	for _, p := range rec.Players {
		s := m.stats[p.UserID]
		if s == nil {
			s = &engine.UserStats{}
			m.stats[p.UserID] = s
		}
		s.GamesPlayed++
		if p.UserID == rec.Winner {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	return h, nil
}

func (m *MockRecorder) Recorded(ctx context.Context, gameID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.histories[gameID]
	return ok, nil
}

func (m *MockRecorder) PlayerStats(ctx context.Context, userID string) (*engine.PlayerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &engine.PlayerStats{}
	for _, h := range m.histories {
		for _, p := range h.Players {
			if p.UserID == userID {
				out.TotalGames++
				if h.WinnerID == userID {
					out.Wins++
				}
			}
		}
	}
	return out, nil
}

func (m *MockRecorder) PlayerHistory(ctx context.Context, userID string, limit int) ([]*engine.GameHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*engine.GameHistory
	for _, h := range m.histories {
		out = append(out, h)
	}
	return out, nil
}

type fixture struct {
	svc      service.GameService
	repo     *MockGameRepository
	store    *session.Store
	recorder *MockRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := NewMockGameRepository()
	store := session.NewStore(repo)
	recorder := NewMockRecorder()
	svc := service.NewGameService(service.Deps{
		Games:    repo,
		Store:    store,
		Recorder: recorder,
		Decks:    engine.NewDeckFactory(99),
	})
	return &fixture{svc: svc, repo: repo, store: store, recorder: recorder}
}

// setDecks overwrites both decks in storage and cache.
func (f *fixture) setDecks(t *testing.T, id string, d1, d2 []engine.CardKind) {
	t.Helper()
	rec := f.repo.stored(id).Clone()
	rec.Players[0].Deck = d1
	rec.Players[1].Deck = d2
	require.NoError(t, f.repo.Save(context.Background(), rec))
	f.store.Put(rec)
}

func TestCreateGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)

	assert.NotEmpty(t, game.ID)
	assert.Equal(t, engine.StatusPlaying, game.Status)
	assert.Equal(t, "alice", game.CurrentTurn)
	assert.Empty(t, game.RoomCode)
	assert.Len(t, game.Players[0].Deck, engine.StartingDeckSize)
	assert.Len(t, game.Players[1].Deck, engine.StartingDeckSize)
	assert.NotNil(t, f.repo.stored(game.ID))
	assert.Equal(t, 1, f.store.Count())
}

func TestCreateGame_Private(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	game, err := f.svc.CreateGame(ctx, "alice", "bob", true)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9A-Z]{6}$`, game.RoomCode)

	found, err := f.svc.GetGameByRoomCode(ctx, game.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, game.ID, found.ID)

	_, err = f.svc.GetGameByRoomCode(ctx, "NOPE00")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestCreateGame_RoomCodeCollisionRetries(t *testing.T) {
	repo := NewMockGameRepository()
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	var i int
	svc := service.NewGameService(service.Deps{
		Games:    repo,
		Store:    session.NewStore(repo),
		Recorder: NewMockRecorder(),
		RoomCodes: func() (string, error) {
			c := codes[i]
			i++
			return c, nil
		},
	})
	ctx := context.Background()

	g1, err := svc.CreateGame(ctx, "a", "b", true)
	require.NoError(t, err)
	g2, err := svc.CreateGame(ctx, "c", "d", true)
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", g1.RoomCode)
	assert.Equal(t, "BBBBBB", g2.RoomCode)
}

func TestCreateGame_InvalidArguments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateGame(ctx, "alice", "alice", false)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	_, err = f.svc.CreateGame(ctx, "", "bob", false)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestCreateGame_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failing.Store(true)

	_, err := f.svc.CreateGame(context.Background(), "alice", "bob", false)
	assert.ErrorIs(t, err, service.ErrPersistence)
	assert.Zero(t, f.store.Count())
}

func TestPlayCard_ResolvesRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)
	f.setDecks(t, game.ID,
		[]engine.CardKind{engine.Boulder, engine.Sheets},
		[]engine.CardKind{engine.Stone, engine.Joker})

	res, err := f.svc.PlayCard(ctx, game.ID, "alice", 0)
	require.NoError(t, err)
	assert.Nil(t, res.CompletedRound)
	assert.Equal(t, []engine.CardKind{engine.Sheets}, res.Game.Players[0].Deck)
	assert.Equal(t, "bob", res.Game.CurrentTurn)

	res, err = f.svc.PlayCard(ctx, game.ID, "bob", 0)
	require.NoError(t, err)
	require.NotNil(t, res.CompletedRound)
	assert.Equal(t, engine.Player1, *res.CompletedRound.Winner)
	assert.Len(t, res.Game.Rounds, 1)
	assert.EqualValues(t, 3, res.Game.Version, "one version per commit")

	stored := f.repo.stored(game.ID)
	assert.Equal(t, res.Game.Rounds, stored.Rounds)

	cached, err := f.svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Game.Rounds, cached.Rounds)
}

func TestPlayCard_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)

	_, err = f.svc.PlayCard(ctx, "missing", "alice", 0)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.svc.PlayCard(ctx, game.ID, "mallory", 0)
	assert.ErrorIs(t, err, service.ErrPlayerNotFound)
	assert.ErrorIs(t, err, service.ErrNotFound)

	savesBefore := f.repo.saves
	_, err = f.svc.PlayCard(ctx, game.ID, "alice", engine.StartingDeckSize)
	assert.ErrorIs(t, err, service.ErrInvalidCard)

	var ge *service.GameError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "play card", ge.Op)
	assert.Equal(t, game.ID, ge.SessionID)

	after, err := f.svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Rounds)
	assert.Len(t, after.Players[0].Deck, engine.StartingDeckSize)
	assert.Equal(t, savesBefore, f.repo.saves)
}

func TestPlayCard_PersistenceFailureKeepsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)

	f.repo.failing.Store(true)
	_, err = f.svc.PlayCard(ctx, game.ID, "alice", 0)
	assert.ErrorIs(t, err, service.ErrPersistence)

	cached, err := f.svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Empty(t, cached.Rounds)
	assert.Len(t, cached.Players[0].Deck, engine.StartingDeckSize)

	// retry succeeds once storage recovers
	f.repo.failing.Store(false)
	_, err = f.svc.PlayCard(ctx, game.ID, "alice", 0)
	require.NoError(t, err)
}

func TestDrawCards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)

	res, err := f.svc.DrawCards(ctx, game.ID, "bob", 0)
	require.NoError(t, err)
	assert.Len(t, res.Drawn, engine.DrawCount)
	assert.Equal(t, engine.StartingDraws-1, res.RemainingDraws)
	assert.Len(t, res.Game.Players[1].Deck, engine.StartingDeckSize+engine.DrawCount)
	for _, c := range res.Drawn {
		assert.NotEqual(t, engine.Joker, c)
	}

	res, err = f.svc.DrawCards(ctx, game.ID, "bob", 5)
	require.NoError(t, err)
	assert.Len(t, res.Drawn, 5)
	assert.Equal(t, engine.StartingDraws-2, res.RemainingDraws, "one draw spent regardless of count")
}

func TestDrawCards_NoDrawsRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)

	for i := 0; i < engine.StartingDraws; i++ {
		_, err := f.svc.DrawCards(ctx, game.ID, "alice", 2)
		require.NoError(t, err)
	}
	before, err := f.svc.GetGame(ctx, game.ID)
	require.NoError(t, err)

	_, err = f.svc.DrawCards(ctx, game.ID, "alice", 2)
	assert.ErrorIs(t, err, service.ErrNoDrawsRemaining)

	after, err := f.svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Players, after.Players)
	assert.Equal(t, before.Version, after.Version)
	assert.Zero(t, after.Players[0].DrawsRemaining)
}

func TestEndGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", true)
	require.NoError(t, err)

	res, err := f.svc.EndGame(ctx, game.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusFinished, res.Game.Status)
	assert.Equal(t, "bob", res.Game.Winner)
	require.NotNil(t, res.Game.EndTime)
	require.NotNil(t, res.History)
	assert.Equal(t, "bob", res.History.WinnerID)
	assert.True(t, res.History.WasPrivate)

	assert.Zero(t, f.store.Count())
	assert.Equal(t, engine.StatusFinished, f.repo.stored(game.ID).Status)
	assert.Equal(t, engine.UserStats{GamesPlayed: 1, Wins: 1}, *f.recorder.stats["bob"])
	assert.Equal(t, engine.UserStats{GamesPlayed: 1, Losses: 1}, *f.recorder.stats["alice"])

	_, err = f.svc.EndGame(ctx, game.ID, "alice")
	assert.ErrorIs(t, err, service.ErrGameFinished)
	_, err = f.svc.PlayCard(ctx, game.ID, "alice", 0)
	assert.ErrorIs(t, err, service.ErrGameFinished)
	_, err = f.svc.DrawCards(ctx, game.ID, "alice", 2)
	assert.ErrorIs(t, err, service.ErrGameFinished)

	finished, err := f.svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusFinished, finished.Status)
}

func TestEndGame_RejectsOutsider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)

	_, err = f.svc.EndGame(ctx, game.ID, "mallory")
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	assert.Zero(t, f.recorder.calls)
}

func TestEndGame_ConcurrentTriggersRecordOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)

	const triggers = 16
	var wg sync.WaitGroup
	var wins, finished atomic.Int32
	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.EndGame(ctx, game.ID, "alice")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, service.ErrGameFinished):
				finished.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, triggers-1, finished.Load())
	assert.Equal(t, 1, f.recorder.calls)
	assert.Len(t, f.recorder.histories, 1)
	assert.Equal(t, 1, f.recorder.stats["alice"].GamesPlayed)
	assert.Equal(t, 1, f.recorder.stats["bob"].GamesPlayed)
}

func TestEndGame_SaveFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)
	f.setDecks(t, game.ID,
		[]engine.CardKind{engine.Stone, engine.Stone},
		[]engine.CardKind{engine.Sheets, engine.Sheets})

	f.repo.failing.Store(true)
	_, err = f.svc.EndGame(ctx, game.ID, "alice")
	assert.ErrorIs(t, err, service.ErrPersistence)
	f.repo.failing.Store(false)

	assert.Zero(t, f.recorder.calls)
	assert.Empty(t, f.recorder.stats)
	assert.Equal(t, 1, f.store.Count())
	assert.Equal(t, engine.StatusPlaying, f.repo.stored(game.ID).Status)

	// the game goes on and the later end is the only one recorded
	_, err = f.svc.PlayCard(ctx, game.ID, "alice", 0)
	require.NoError(t, err)
	_, err = f.svc.PlayCard(ctx, game.ID, "bob", 0)
	require.NoError(t, err)

	res, err := f.svc.EndGame(ctx, game.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Game.Winner)
	assert.Equal(t, res.Game.Winner, res.History.WinnerID)
	assert.Equal(t, len(res.Game.Rounds), res.History.TotalRounds)
	assert.Len(t, f.recorder.histories, 1)
	assert.Equal(t, engine.UserStats{GamesPlayed: 1, Wins: 1}, *f.recorder.stats["bob"])
	assert.Equal(t, engine.UserStats{GamesPlayed: 1, Losses: 1}, *f.recorder.stats["alice"])
}

func TestEndGame_HistoryFailureFinishesGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)

	f.recorder.failing = true
	_, err = f.svc.EndGame(ctx, game.ID, "alice")
	assert.ErrorIs(t, err, service.ErrPersistence)
	f.recorder.failing = false

	cur, err := f.svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusFinished, cur.Status)
	assert.Equal(t, "alice", cur.Winner)
	assert.Zero(t, f.store.Count())

	_, err = f.svc.PlayCard(ctx, game.ID, "bob", 0)
	assert.ErrorIs(t, err, service.ErrGameFinished)
	_, err = f.svc.DrawCards(ctx, game.ID, "alice", engine.DrawCount)
	assert.ErrorIs(t, err, service.ErrGameFinished)

	_, err = f.svc.EndGame(ctx, game.ID, "bob")
	assert.ErrorIs(t, err, service.ErrGameFinished)
	assert.Empty(t, f.recorder.histories)

	res, err := f.svc.EndGame(ctx, game.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.History.WinnerID)
	assert.Equal(t, cur.Winner, res.Game.Winner)
	assert.Equal(t, engine.UserStats{GamesPlayed: 1, Wins: 1}, *f.recorder.stats["alice"])

	_, err = f.svc.EndGame(ctx, game.ID, "alice")
	assert.ErrorIs(t, err, service.ErrGameFinished)
	assert.Len(t, f.recorder.histories, 1)
}

func TestPlayCard_ConcurrentPlayersSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)

	const plays = 10
	var wg sync.WaitGroup
	for _, player := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(player string) {
			defer wg.Done()
			for i := 0; i < plays; i++ {
				_, err := f.svc.PlayCard(ctx, game.ID, player, 0)
				assert.NoError(t, err)
				time.Sleep(time.Millisecond)
			}
		}(player)
	}
	wg.Wait()

	final, err := f.svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Len(t, final.Players[0].Deck, engine.StartingDeckSize-plays)
	assert.Len(t, final.Players[1].Deck, engine.StartingDeckSize-plays)
	assert.EqualValues(t, 1+2*plays, final.Version)

	// every round but possibly the last is resolved exactly once
	for i, r := range final.Rounds {
		if r.Complete() {
			require.NotNil(t, r.Winner, "round %d", i)
			assert.Equal(t, engine.ResolveRound(r.Player1Card, r.Player2Card), *r.Winner)
		} else {
			assert.Equal(t, len(final.Rounds)-1, i, "only the last round may be open")
		}
	}
	assert.Equal(t, final.Rounds, f.repo.stored(game.ID).Rounds)
}

func TestPlayerStatsAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, err := f.svc.CreateGame(ctx, "alice", "bob", false)
	require.NoError(t, err)
	_, err = f.svc.EndGame(ctx, game.ID, "alice")
	require.NoError(t, err)

	stats, err := f.svc.PlayerStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalGames)
	assert.Equal(t, 1, stats.Wins)

	hist, err := f.svc.PlayerHistory(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestUserMessage(t *testing.T) {
	wrap := func(err error) error { return &service.GameError{Op: "x", SessionID: "s", Err: err} }

	assert.Equal(t, "Game not found", service.UserMessage(wrap(service.ErrNotFound)))
	assert.Equal(t, "Player not found in game", service.UserMessage(wrap(service.ErrPlayerNotFound)))
	assert.Equal(t, "Card not found", service.UserMessage(wrap(service.ErrInvalidCard)))
	assert.Equal(t, "No draws remaining", service.UserMessage(wrap(service.ErrNoDrawsRemaining)))
	assert.Equal(t, "Game is already finished", service.UserMessage(wrap(service.ErrGameFinished)))
	assert.Equal(t, "Something went wrong", service.UserMessage(wrap(fmt.Errorf("%w: boom", service.ErrPersistence))))
}

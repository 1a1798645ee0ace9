package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/logger"
)

const (
	roomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomCodeLength   = 6
	roomCodeAttempts = 5
)

// Deps are the collaborators of the game service. Decks, Clock, NewID and
// RoomCodes default to production implementations when nil.
type Deps struct {
	Games     GameRepository
	Store     SessionStore
	Recorder  HistoryRecorder
	Decks     *engine.DeckFactory
	Clock     func() time.Time
	NewID     func() string
	RoomCodes func() (string, error)
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	games     GameRepository
	store     SessionStore
	recorder  HistoryRecorder
	decks     *engine.DeckFactory
	now       func() time.Time
	newID     func() string
	roomCodes func() (string, error)
	locks     *keyedMutex
}

// NewGameService creates a new game service instance
func NewGameService(deps Deps) GameService {
	s := &gameServiceImpl{
		games:     deps.Games,
		store:     deps.Store,
		recorder:  deps.Recorder,
		decks:     deps.Decks,
		now:       deps.Clock,
		newID:     deps.NewID,
		roomCodes: deps.RoomCodes,
		locks:     newKeyedMutex(),
	}
	if s.decks == nil {
		s.decks = engine.DefaultDeckFactory()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.roomCodes == nil {
		s.roomCodes = NewRoomCode
	}
	return s
}

// NewRoomCode returns a random six character upper-case alphanumeric code.
func NewRoomCode() (string, error) {
	return gonanoid.Generate(roomCodeAlphabet, roomCodeLength)
}

// CreateGame deals a new game between two players
func (s *gameServiceImpl) CreateGame(ctx context.Context, player1ID, player2ID string, isPrivate bool) (*engine.GameRecord, error) {
	const op = "create game"

	if player1ID == "" || player2ID == "" {
		return nil, opError(op, "", fmt.Errorf("%w: both players are required", ErrInvalidArgument))
	}
	if player1ID == player2ID {
		return nil, opError(op, "", fmt.Errorf("%w: players must differ", ErrInvalidArgument))
	}

	rec := engine.NewGameRecord(s.newID(), player1ID, player2ID, s.decks, s.now())
	rec.IsPrivate = isPrivate

	if isPrivate {
		code, err := s.uniqueRoomCode(ctx)
		if err != nil {
			return nil, opError(op, rec.ID, err)
		}
		rec.RoomCode = code
	}

	if err := s.games.Save(ctx, rec); err != nil {
		return nil, persistenceError(op, rec.ID, err)
	}
	s.store.Put(rec)

	logger.Info(ctx).
		Str("session_id", rec.ID).
		Str("player1", player1ID).
		Str("player2", player2ID).
		Bool("private", isPrivate).
		Msg("Game created")

	return rec.Clone(), nil
}

func (s *gameServiceImpl) uniqueRoomCode(ctx context.Context) (string, error) {
	for i := 0; i < roomCodeAttempts; i++ {
		code, err := s.roomCodes()
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		taken, err := s.games.RoomCodeTaken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no free room code after %d attempts", ErrPersistence, roomCodeAttempts)
}

// GetGame returns a copy of the current state of a session
func (s *gameServiceImpl) GetGame(ctx context.Context, sessionID string) (*engine.GameRecord, error) {
	rec, err := s.load(ctx, "get game", sessionID)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// GetGameByRoomCode resolves a private game by its room code
func (s *gameServiceImpl) GetGameByRoomCode(ctx context.Context, roomCode string) (*engine.GameRecord, error) {
	const op = "get game by room code"

	rec, err := s.games.FindByRoomCode(ctx, strings.ToUpper(strings.TrimSpace(roomCode)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, opError(op, "", err)
		}
		return nil, persistenceError(op, "", err)
	}
	// prefer the cached value, which may be newer than what was just read
	return s.GetGame(ctx, rec.ID)
}

// PlayCard plays the card at cardIndex from userID's deck
func (s *gameServiceImpl) PlayCard(ctx context.Context, sessionID, userID string, cardIndex int) (*PlayResult, error) {
	const op = "play card"

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	cur, seat, err := s.loadPlaying(ctx, op, sessionID, userID)
	if err != nil {
		return nil, err
	}

	next := cur.Clone()
	round, err := next.PlayCard(seat, cardIndex)
	if err != nil {
		return nil, opError(op, sessionID, err)
	}
	next.UpdatedAt = s.now()

	if err := s.commit(ctx, next); err != nil {
		return nil, persistenceError(op, sessionID, err)
	}

	result := &PlayResult{Game: next.Clone()}
	if round.Complete() {
		result.CompletedRound = &round
		logger.Debug(ctx).
			Str("session_id", sessionID).
			Int("round", len(next.Rounds)).
			Stringer("winner", *round.Winner).
			Msg("Round complete")
	}
	return result, nil
}

// DrawCards adds count replacement cards to userID's deck and spends a draw
func (s *gameServiceImpl) DrawCards(ctx context.Context, sessionID, userID string, count int) (*DrawResult, error) {
	const op = "draw cards"

	if count <= 0 {
		count = engine.DrawCount
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	cur, seat, err := s.loadPlaying(ctx, op, sessionID, userID)
	if err != nil {
		return nil, err
	}

	next := cur.Clone()
	cards := s.decks.DrawCards(count)
	if err := next.DrawCards(seat, cards); err != nil {
		return nil, opError(op, sessionID, err)
	}
	next.UpdatedAt = s.now()

	if err := s.commit(ctx, next); err != nil {
		return nil, persistenceError(op, sessionID, err)
	}

	return &DrawResult{
		Game:           next.Clone(),
		PlayerID:       userID,
		Drawn:          cards,
		RemainingDraws: next.Players[seat].DrawsRemaining,
	}, nil
}

// EndGame finishes a session, writes its history and retires it from the
// store. The finished record is saved before the history, so a failed save
// leaves nothing written. Ending a finished game whose history is missing
// with the same winner completes the history; any other call on a finished
// game fails with ErrGameFinished and writes nothing.
func (s *gameServiceImpl) EndGame(ctx context.Context, sessionID, winnerID string) (*EndResult, error) {
	const op = "end game"

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	cur, err := s.load(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if cur.Status == engine.StatusFinished {
		return s.resumeEnd(ctx, op, cur, winnerID)
	}
	if _, ok := cur.SeatOf(winnerID); !ok {
		return nil, opError(op, sessionID, fmt.Errorf("%w: winner %q is not a participant", ErrInvalidArgument, winnerID))
	}

	next := cur.Clone()
	if err := next.Finish(winnerID, s.now()); err != nil {
		return nil, opError(op, sessionID, err)
	}
	next.Version++

	if err := s.games.Save(ctx, next); err != nil {
		return nil, persistenceError(op, sessionID, err)
	}
	s.store.Remove(sessionID)

	hist, err := s.recorder.Record(ctx, next)
	if err != nil {
		logger.Error(ctx).Err(err).Str("session_id", sessionID).Msg("Game finished without history")
		return nil, persistenceError(op, sessionID, err)
	}

	logger.Info(ctx).
		Str("session_id", sessionID).
		Str("winner", winnerID).
		Int("rounds", len(next.Rounds)).
		Msg("Game finished")

	return &EndResult{Game: next.Clone(), History: hist}, nil
}

// resumeEnd records the history of a game that was saved as finished but
// whose history write failed.
func (s *gameServiceImpl) resumeEnd(ctx context.Context, op string, cur *engine.GameRecord, winnerID string) (*EndResult, error) {
	if winnerID != cur.Winner {
		return nil, opError(op, cur.ID, ErrGameFinished)
	}
	recorded, err := s.recorder.Recorded(ctx, cur.ID)
	if err != nil {
		return nil, persistenceError(op, cur.ID, err)
	}
	if recorded {
		return nil, opError(op, cur.ID, ErrGameFinished)
	}

	hist, err := s.recorder.Record(ctx, cur)
	if err != nil {
		return nil, persistenceError(op, cur.ID, err)
	}

	logger.Info(ctx).
		Str("session_id", cur.ID).
		Str("winner", cur.Winner).
		Msg("Game history completed")

	return &EndResult{Game: cur.Clone(), History: hist}, nil
}

// PlayerStats aggregates a player's finished games
func (s *gameServiceImpl) PlayerStats(ctx context.Context, userID string) (*engine.PlayerStats, error) {
	stats, err := s.recorder.PlayerStats(ctx, userID)
	if err != nil {
		return nil, persistenceError("player stats", "", err)
	}
	return stats, nil
}

// PlayerHistory lists a player's most recent finished games
func (s *gameServiceImpl) PlayerHistory(ctx context.Context, userID string, limit int) ([]*engine.GameHistory, error) {
	histories, err := s.recorder.PlayerHistory(ctx, userID, limit)
	if err != nil {
		return nil, persistenceError("player history", "", err)
	}
	return histories, nil
}

// load fetches the committed record of a session.
func (s *gameServiceImpl) load(ctx context.Context, op, sessionID string) (*engine.GameRecord, error) {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, opError(op, sessionID, err)
		}
		return nil, persistenceError(op, sessionID, err)
	}
	return rec, nil
}

// loadPlaying fetches a session that is in progress and the seat of userID.
func (s *gameServiceImpl) loadPlaying(ctx context.Context, op, sessionID, userID string) (*engine.GameRecord, int, error) {
	cur, err := s.load(ctx, op, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if cur.Status == engine.StatusFinished {
		return nil, 0, opError(op, sessionID, ErrGameFinished)
	}
	seat, ok := cur.SeatOf(userID)
	if !ok {
		return nil, 0, opError(op, sessionID, ErrPlayerNotFound)
	}
	return cur, seat, nil
}

// commit persists next as the following version and then publishes it to
// the store.
func (s *gameServiceImpl) commit(ctx context.Context, next *engine.GameRecord) error {
	next.Version++
	if err := s.games.Save(ctx, next); err != nil {
		return err
	}
	s.store.Put(next)
	return nil
}

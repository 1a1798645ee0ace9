package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/service"
	"github.com/cardduel/server/logger"
)

// DefaultHistoryLimit is used when PlayerHistory is called without a limit.
const DefaultHistoryLimit = 10

var (
	// ErrAlreadyRecorded is returned by a Repository when a snapshot for the
	// game already exists.
	ErrAlreadyRecorded = errors.New("history already recorded")
	ErrNotFinished     = errors.New("game is not finished")
)

// Repository stores snapshots. Record writes the snapshot and the
// participants' win/loss counters in one transaction. FindByGameID wraps
// service.ErrNotFound for unknown games.
type Repository interface {
	Record(ctx context.Context, h *engine.GameHistory) error
	FindByGameID(ctx context.Context, gameID string) (*engine.GameHistory, error)
	PlayerStats(ctx context.Context, userID string) (*engine.PlayerStats, error)
	ListByPlayer(ctx context.Context, userID string, limit int) ([]*engine.GameHistory, error)
}

// Sink is told about every newly committed snapshot.
type Sink interface {
	Name() string
	GameFinished(ctx context.Context, h *engine.GameHistory) error
}

// Recorder implements service.HistoryRecorder
type Recorder struct {
	repo  Repository
	sinks []Sink
	newID func() string
}

var _ service.HistoryRecorder = (*Recorder)(nil)

// NewRecorder creates a recorder writing to repo and notifying sinks.
func NewRecorder(repo Repository, sinks ...Sink) *Recorder {
	return &Recorder{repo: repo, sinks: sinks, newID: uuid.NewString}
}

// Record snapshots a finished game. A second call for the same game returns
// the stored snapshot and leaves the counters alone.
func (r *Recorder) Record(ctx context.Context, rec *engine.GameRecord) (*engine.GameHistory, error) {
	if rec.Status != engine.StatusFinished || rec.EndTime == nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, ErrNotFinished)
	}

	h := engine.BuildHistory(r.newID(), rec)
	err := r.repo.Record(ctx, h)
	switch {
	case errors.Is(err, ErrAlreadyRecorded):
		logger.Warn(ctx).Str("game_id", rec.ID).Msg("History already recorded, returning stored snapshot")
		return r.repo.FindByGameID(ctx, rec.ID)
	case err != nil:
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}

	logger.Info(ctx).
		Str("game_id", rec.ID).
		Str("history_id", h.ID).
		Str("winner", h.WinnerID).
		Int("rounds", h.TotalRounds).
		Float64("duration", h.Duration).
		Msg("Game history recorded")

	r.notify(ctx, h)
	return h, nil
}

// Recorded reports whether a snapshot exists for gameID.
func (r *Recorder) Recorded(ctx context.Context, gameID string) (bool, error) {
	_, err := r.repo.FindByGameID(ctx, gameID)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (r *Recorder) notify(ctx context.Context, h *engine.GameHistory) {
	for _, sink := range r.sinks {
		if err := sink.GameFinished(ctx, h); err != nil {
			logger.Error(ctx).Err(err).
				Str("sink", sink.Name()).
				Str("game_id", h.GameID).
				Msg("Failed to deliver finished game")
		}
	}
}

// PlayerStats aggregates every snapshot userID took part in
func (r *Recorder) PlayerStats(ctx context.Context, userID string) (*engine.PlayerStats, error) {
	return r.repo.PlayerStats(ctx, userID)
}

// PlayerHistory returns userID's most recent snapshots, newest first
func (r *Recorder) PlayerHistory(ctx context.Context, userID string, limit int) ([]*engine.GameHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return r.repo.ListByPlayer(ctx, userID, limit)
}

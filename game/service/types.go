package service

import (
	"github.com/cardduel/server/game/engine"
)

// PlayResult is the outcome of a PlayCard call.
type PlayResult struct {
	Game *engine.GameRecord `json:"game"`
	// CompletedRound is set when this play was the second card of a round.
	CompletedRound *engine.Round `json:"completed_round,omitempty"`
}

// DrawResult is the outcome of a DrawCards call.
type DrawResult struct {
	Game           *engine.GameRecord `json:"game"`
	PlayerID       string             `json:"player_id"`
	Drawn          []engine.CardKind  `json:"drawn"`
	RemainingDraws int                `json:"remaining_draws"`
}

// EndResult is the outcome of an EndGame call.
type EndResult struct {
	Game    *engine.GameRecord  `json:"game"`
	History *engine.GameHistory `json:"history"`
}

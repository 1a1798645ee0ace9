package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCard       = errors.New("invalid card index")
	ErrNoDrawsRemaining  = errors.New("no draws remaining")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrGameNotPlaying    = errors.New("game is not in progress")
)

// NewGameRecord deals two fresh decks and starts the game with player1 to act.
func NewGameRecord(id, player1ID, player2ID string, decks *DeckFactory, now time.Time) *GameRecord {
	return &GameRecord{
		ID:      id,
		Version: 1,
		Players: [2]Player{
			{UserID: player1ID, Deck: decks.NewDeck(), DrawsRemaining: StartingDraws},
			{UserID: player2ID, Deck: decks.NewDeck(), DrawsRemaining: StartingDraws},
		},
		CurrentTurn: player1ID,
		Status:      StatusPlaying,
		Rounds:      []Round{},
		StartTime:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy that shares no slices or pointers with rec.
func (rec *GameRecord) Clone() *GameRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	for i := range rec.Players {
		out.Players[i].Deck = append([]CardKind(nil), rec.Players[i].Deck...)
	}
	out.Rounds = make([]Round, len(rec.Rounds))
	for i, r := range rec.Rounds {
		out.Rounds[i] = r
		if r.Winner != nil {
			w := *r.Winner
			out.Rounds[i].Winner = &w
		}
	}
	if rec.EndTime != nil {
		t := *rec.EndTime
		out.EndTime = &t
	}
	return &out
}

// SeatOf returns the seat index (0 or 1) of userID.
func (rec *GameRecord) SeatOf(userID string) (int, bool) {
	for i, p := range rec.Players {
		if p.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

// Opponent returns the user in the other seat.
func (rec *GameRecord) Opponent(seat int) string {
	return rec.Players[1-seat].UserID
}

// OpenRound returns the round awaiting a second card, if any.
func (rec *GameRecord) OpenRound() (*Round, bool) {
	if n := len(rec.Rounds); n > 0 && !rec.Rounds[n-1].Complete() {
		return &rec.Rounds[n-1], true
	}
	return nil, false
}

// PlayCard removes the card at index from seat's deck and places it in the
// open round, opening a new one when the last round is resolved. When the
// second card lands the round winner is computed. It returns the round the
// card was placed in.
//
// PlayCard mutates rec and must only be called on a clone.
func (rec *GameRecord) PlayCard(seat, index int) (Round, error) {
	if rec.Status != StatusPlaying {
		return Round{}, ErrGameNotPlaying
	}
	player := &rec.Players[seat]
	if index < 0 || index >= len(player.Deck) {
		return Round{}, fmt.Errorf("%w: %d (deck has %d cards)", ErrInvalidCard, index, len(player.Deck))
	}

	card := player.Deck[index]
	player.Deck = append(player.Deck[:index], player.Deck[index+1:]...)

	round, ok := rec.OpenRound()
	if !ok {
		rec.Rounds = append(rec.Rounds, Round{})
		round = &rec.Rounds[len(rec.Rounds)-1]
	}

	if seat == 0 {
		round.Player1Card = card
	} else {
		round.Player2Card = card
	}

	if round.Complete() && round.Winner == nil {
		w := ResolveRound(round.Player1Card, round.Player2Card)
		round.Winner = &w
	}

	rec.CurrentTurn = rec.Opponent(seat)
	return *round, nil
}

// DrawCards appends cards to seat's deck and spends one draw.
//
// DrawCards mutates rec and must only be called on a clone.
func (rec *GameRecord) DrawCards(seat int, cards []CardKind) error {
	if rec.Status != StatusPlaying {
		return ErrGameNotPlaying
	}
	player := &rec.Players[seat]
	if player.DrawsRemaining <= 0 {
		return ErrNoDrawsRemaining
	}
	player.Deck = append(player.Deck, cards...)
	player.DrawsRemaining--
	return nil
}

// Finish marks the game finished with winnerID as the winner.
func (rec *GameRecord) Finish(winnerID string, now time.Time) error {
	if !rec.Status.CanTransitionTo(StatusFinished) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusFinished)
	}
	rec.Status = StatusFinished
	rec.Winner = winnerID
	rec.EndTime = &now
	rec.UpdatedAt = now
	return nil
}

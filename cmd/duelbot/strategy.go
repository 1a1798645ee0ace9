package main

import (
	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/transport/websocket"
)

// Strategy picks cards for one player. It remembers every card the opponent
// has revealed and assumes the rest of the opponent's deck follows the
// starting composition.
type Strategy struct {
	me       string
	prior    map[engine.CardKind]int
	seen     map[engine.CardKind]int
	observed int
}

// NewStrategy creates a strategy playing as userID
func NewStrategy(userID string) *Strategy {
	prior := make(map[engine.CardKind]int)
	for _, c := range engine.NewDeckFactory(0).NewDeck() {
		prior[c]++
	}
	return &Strategy{me: userID, prior: prior, seen: make(map[engine.CardKind]int)}
}

func (s *Strategy) seats(view *websocket.GameView) (me, opp int) {
	if len(view.Players) == 2 && view.Players[1].ID == s.me {
		return 1, 0
	}
	return 0, 1
}

// Observe records the opponent cards of rounds completed since the last call
func (s *Strategy) Observe(view *websocket.GameView) {
	_, opp := s.seats(view)
	for s.observed < len(view.Rounds) && view.Rounds[s.observed].Complete() {
		s.seen[view.Rounds[s.observed].Card(opp)]++
		s.observed++
	}
}

// ShouldDraw reports whether spending a draw now is worthwhile: a draw is
// left and the opponent is not clearly behind on cards.
func (s *Strategy) ShouldDraw(view *websocket.GameView) bool {
	me, opp := s.seats(view)
	if len(view.Players) != 2 || view.Players[me].DrawsRemaining == 0 {
		return false
	}
	return view.Players[me].CardsCount <= view.Players[opp].CardsCount+1
}

// Choose returns the index of the card to play from the own deck. When the
// opponent has already committed a card to the open round, it answers that
// card; otherwise it maximizes the expected score against the estimated
// opponent deck.
func (s *Strategy) Choose(view *websocket.GameView) int {
	me, opp := s.seats(view)
	deck := view.Players[me].Deck
	if len(deck) == 0 {
		return 0
	}

	weights := s.opponentWeights()
	if n := len(view.Rounds); n > 0 && !view.Rounds[n-1].Complete() {
		if c := view.Rounds[n-1].Card(opp); c != engine.NoCard {
			weights = map[engine.CardKind]int{c: 1}
		}
	}

	best, bestScore := 0, -1<<31
	for i, c := range deck {
		score := 0
		for other, w := range weights {
			score += w * roundScore(c, other, me)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func (s *Strategy) opponentWeights() map[engine.CardKind]int {
	w := make(map[engine.CardKind]int, len(s.prior))
	for c, n := range s.prior {
		if left := n - s.seen[c]; left > 0 {
			w[c] = left
		}
	}
	if len(w) == 0 {
		// deck exhausted its starting cards; only draws remain, never a Joker
		for _, c := range engine.AllCards {
			if c != engine.Joker {
				w[c] = 1
			}
		}
	}
	return w
}

// roundScore is +1 if mine wins from seat, -1 if it loses and 0 on a draw
func roundScore(mine, theirs engine.CardKind, seat int) int {
	c1, c2 := mine, theirs
	if seat == 1 {
		c1, c2 = theirs, mine
	}
	switch engine.ResolveRound(c1, c2).Seat() {
	case seat:
		return 1
	case -1:
		return 0
	default:
		return -1
	}
}

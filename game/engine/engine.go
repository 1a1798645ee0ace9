package engine

// ResolveRound decides a round between the card played by player1 (c1) and
// the card played by player2 (c2). Every pair of cards has exactly one outcome.
func ResolveRound(c1, c2 CardKind) Outcome {
	switch {
	case c1 == Joker || c2 == Joker:
		return resolveJoker(c1, c2)
	case c1.IsUpgrade() || c2.IsUpgrade():
		return resolveUpgrade(c1, c2)
	default:
		return resolveBase(c1, c2)
	}
}

func resolveJoker(c1, c2 CardKind) Outcome {
	switch {
	case c1 == Joker && c2 == Joker:
		return Draw
	case c1 == Joker:
		if c2.IsUpgrade() {
			return Player2
		}
		return Player1
	default:
		if c1.IsUpgrade() {
			return Player1
		}
		return Player2
	}
}

// resolveUpgrade handles pairings with at least one upgrade card. An upgrade
// only beats the base card it upgrades; other pairings go to the base table,
// where upgrades have no entry.
func resolveUpgrade(c1, c2 CardKind) Outcome {
	if c1.IsUpgrade() && c1.Base() == c2 {
		return Player1
	}
	if c2.IsUpgrade() && c2.Base() == c1 {
		return Player2
	}
	return resolveBase(c1, c2)
}

func resolveBase(c1, c2 CardKind) Outcome {
	if beats(c1) == c2 {
		return Player1
	}
	if beats(c2) == c1 {
		return Player2
	}
	return Draw
}

// beats returns the base card that c defeats in the cyclic table.
func beats(c CardKind) CardKind {
	switch c {
	case Stone:
		return Sheers
	case Sheers:
		return Sheets
	case Sheets:
		return Stone
	case NoCard, Boulder, Cloth, Sword, Joker:
		return NoCard
	}
	return NoCard
}

// IsOver reports whether any player has run out of cards.
func IsOver(rec *GameRecord) bool {
	for _, p := range rec.Players {
		if len(p.Deck) == 0 {
			return true
		}
	}
	return false
}

// DecideGameOutcome picks the winner of a game that is over: the seat holding
// more cards wins, and a tie goes to player2.
func DecideGameOutcome(rec *GameRecord) Outcome {
	if len(rec.Players[0].Deck) > len(rec.Players[1].Deck) {
		return Player1
	}
	return Player2
}

// WinnerID resolves the user that DecideGameOutcome picks.
func WinnerID(rec *GameRecord) string {
	return rec.Players[DecideGameOutcome(rec).Seat()].UserID
}

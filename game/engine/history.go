package engine

import (
	"github.com/samber/lo"
)

// BuildHistory summarises a finished game. The snapshot shares no memory with rec.
func BuildHistory(id string, rec *GameRecord) *GameHistory {
	rounds := rec.Clone().Rounds

	var end = rec.UpdatedAt
	if rec.EndTime != nil {
		end = *rec.EndTime
	}

	players := lo.Map(rec.Players[:], func(p Player, _ int) HistoryPlayer {
		return HistoryPlayer{
			UserID:        p.UserID,
			FinalDeckSize: len(p.Deck),
			CardsPlayed:   BaselineDeckSize - len(p.Deck),
			DrawsUsed:     StartingDraws - p.DrawsRemaining,
		}
	})

	return &GameHistory{
		ID:           id,
		GameID:       rec.ID,
		Players:      players,
		WinnerID:     rec.Winner,
		Rounds:       rounds,
		Duration:     end.Sub(rec.StartTime).Seconds(),
		TotalRounds:  len(rounds),
		WasPrivate:   rec.IsPrivate,
		SpecialCards: CountSpecialCards(rounds),
		StartTime:    rec.StartTime,
		EndTime:      end,
	}
}

// CountSpecialCards counts jokers and upgrade cards across every played card.
func CountSpecialCards(rounds []Round) SpecialCards {
	cards := lo.FlatMap(rounds, func(r Round, _ int) []CardKind {
		return []CardKind{r.Player1Card, r.Player2Card}
	})
	return SpecialCards{
		JokersPlayed:   lo.Count(cards, Joker),
		UpgradesPlayed: lo.CountBy(cards, CardKind.IsUpgrade),
	}
}

package mcp

import (
	"fmt"
	"strings"

	"github.com/cardduel/server/auth"
	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/transport/websocket"
)

func formatSession(s *auth.Session) string {
	kind := "account"
	if s.User.IsGuest {
		kind = "guest"
	}
	return fmt.Sprintf("Signed in as %s (%s)\nUser ID: %s\nToken expires: %s\n",
		s.User.Username, kind, s.User.UserID, s.ExpiresAt.Format("2006-01-02 15:04"))
}

func formatProfile(p *auth.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", p.Username, p.ID)
	fmt.Fprintf(&b, "Games: %d  Wins: %d  Losses: %d  Win rate: %.1f%%\n",
		p.Stats.GamesPlayed, p.Stats.Wins, p.Stats.Losses, p.WinRate)
	return b.String()
}

func formatGame(v *websocket.GameView) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Game %s [%s]\n", v.ID, v.Status)
	if v.RoomCode != "" {
		fmt.Fprintf(&b, "Room code: %s\n", v.RoomCode)
	}
	if v.Status == engine.StatusFinished {
		fmt.Fprintf(&b, "Winner: %s\n", v.Winner)
	} else {
		fmt.Fprintf(&b, "Turn: %s\n", v.CurrentTurn)
	}

	b.WriteString("\nPlayers:\n")
	for i, p := range v.Players {
		fmt.Fprintf(&b, "  %d. %s - %d cards, %d draws left\n", i+1, p.ID, p.CardsCount, p.DrawsRemaining)
		if p.Deck != nil {
			names := make([]string, len(p.Deck))
			for j, c := range p.Deck {
				names[j] = fmt.Sprintf("%d:%s", j, c)
			}
			fmt.Fprintf(&b, "     hand: %s\n", strings.Join(names, " "))
		}
	}

	if len(v.Rounds) > 0 {
		fmt.Fprintf(&b, "\nRounds (%d):\n", len(v.Rounds))
		for i, r := range v.Rounds {
			b.WriteString(formatRound(i+1, r))
		}
	}
	return b.String()
}

func formatRound(n int, r engine.Round) string {
	if !r.Complete() || r.Winner == nil {
		return fmt.Sprintf("  %d. waiting for second card\n", n)
	}
	return fmt.Sprintf("  %d. %s vs %s -> %s\n", n, r.Player1Card, r.Player2Card, *r.Winner)
}

func formatStats(playerID string, s *engine.PlayerStats) string {
	if s.TotalGames == 0 {
		return fmt.Sprintf("%s has no finished games\n", playerID)
	}
	return fmt.Sprintf("Stats for %s\nGames: %d\nWins: %d\nAverage duration: %.0fs\nJokers played: %d\nUpgrades played: %d\n",
		playerID, s.TotalGames, s.Wins, s.AvgDuration, s.TotalJokersPlayed, s.TotalUpgradesPlayed)
}

func formatHistory(playerID string, h *HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recent games for %s (%d):\n", playerID, h.Count)
	for _, g := range h.Histories {
		result := "lost"
		if g.WinnerID == playerID {
			result = "won"
		}
		fmt.Fprintf(&b, "- %s %s in %d rounds (%.0fs) on %s\n",
			g.GameID, result, g.TotalRounds, g.Duration, g.EndTime.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func gameRules() string {
	var b strings.Builder
	b.WriteString("Card Duel - Rules\n\n")
	b.WriteString("CARDS:\n")
	b.WriteString("  Base: Stone, Sheets, Sheers\n")
	b.WriteString("  Upgrades: Boulder (Stone), Cloth (Sheets), Sword (Sheers)\n")
	b.WriteString("  Special: Joker\n\n")

	b.WriteString("ROUNDS:\n")
	b.WriteString("  Both players play one card. Stone beats sheers, sheers beats sheets,\n")
	b.WriteString("  sheets beats stone. An upgrade beats its own base card; against any\n")
	b.WriteString("  other card it has no power and the round is a draw. The joker beats\n")
	b.WriteString("  every base card and loses to every upgrade; joker against joker is a draw.\n\n")

	b.WriteString("RESOLUTION TABLE (row = player1, column = player2):\n")
	b.WriteString(resolutionTable())

	fmt.Fprintf(&b, "\nDRAWS:\n  Each player may draw %d times. A draw adds %d random non-joker cards.\n\n",
		engine.StartingDraws, engine.DrawCount)
	fmt.Fprintf(&b, "GAME END:\n  Decks start with %d cards. The game ends when a deck is empty;\n", engine.StartingDeckSize)
	b.WriteString("  the player holding more cards wins, and a tie goes to player 2.\n")
	return b.String()
}

// resolutionTable renders ResolveRound for every pair of cards.
func resolutionTable() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s", "")
	for _, c := range engine.AllCards {
		fmt.Fprintf(&b, "%-8s", c)
	}
	b.WriteString("\n")
	for _, c1 := range engine.AllCards {
		fmt.Fprintf(&b, "%-8s", c1)
		for _, c2 := range engine.AllCards {
			fmt.Fprintf(&b, "%-8s", shortOutcome(engine.ResolveRound(c1, c2)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func shortOutcome(o engine.Outcome) string {
	switch o {
	case engine.Player1:
		return "P1"
	case engine.Player2:
		return "P2"
	case engine.Draw:
		return "-"
	}
	return "?"
}

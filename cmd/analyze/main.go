// Command analyze prints quick, human-readable facts about the card rules:
// the full round resolution table, how strong each card is, the starting
// deck composition and the outcome of simulated random games.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/cardduel/server/game/engine"
)

// CardStrength counts how a card fares against every playable card.
type CardStrength struct {
	Wins, Losses, Draws int
}

// SimulationResult summarizes a batch of simulated games.
type SimulationResult struct {
	Games         int
	Player1Wins   int
	Player2Wins   int
	TotalRounds   int
	RoundOutcomes map[engine.Outcome]int
}

// AvgRounds is the mean number of rounds per game.
func (r SimulationResult) AvgRounds() float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.TotalRounds) / float64(r.Games)
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Print the card resolution table, deck composition and simulated outcomes",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "games", Value: 1000, Usage: "number of random games to simulate"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "random seed for decks and play"},
			&cli.FloatFlag{Name: "draw-chance", Value: 0.1, Usage: "chance a player spends a draw before playing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			out := os.Stdout
			printResolutionTable(out)
			printStrength(out)
			printComposition(out, engine.NewDeckFactory(int64(cmd.Int("seed"))))

			start := time.Now()
			result := simulate(int(cmd.Int("games")), int64(cmd.Int("seed")), cmd.Float("draw-chance"))
			printSimulation(out, result, time.Since(start))
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func printResolutionTable(w io.Writer) {
	fmt.Fprintf(w, "\n=== Resolution table (row = player1, column = player2) ===\n")
	fmt.Fprintf(w, "%-9s", "")
	for _, c := range engine.AllCards {
		fmt.Fprintf(w, "%-9s", c)
	}
	fmt.Fprintln(w)
	for _, c1 := range engine.AllCards {
		fmt.Fprintf(w, "%-9s", c1)
		for _, c2 := range engine.AllCards {
			fmt.Fprintf(w, "%-9s", engine.ResolveRound(c1, c2))
		}
		fmt.Fprintln(w)
	}
}

// cardStrength plays card as player1 against every card.
func cardStrength(card engine.CardKind) CardStrength {
	var s CardStrength
	for _, other := range engine.AllCards {
		switch engine.ResolveRound(card, other) {
		case engine.Player1:
			s.Wins++
		case engine.Player2:
			s.Losses++
		default:
			s.Draws++
		}
	}
	return s
}

func printStrength(w io.Writer) {
	fmt.Fprintf(w, "\n=== Card strength ===\n")
	for _, c := range engine.AllCards {
		s := cardStrength(c)
		fmt.Fprintf(w, "%-8s wins %d  loses %d  draws %d\n", c, s.Wins, s.Losses, s.Draws)
	}
}

// composition counts the cards of one freshly dealt deck.
func composition(f *engine.DeckFactory) map[engine.CardKind]int {
	counts := make(map[engine.CardKind]int)
	for _, c := range f.NewDeck() {
		counts[c]++
	}
	return counts
}

func printComposition(w io.Writer, f *engine.DeckFactory) {
	counts := composition(f)
	fmt.Fprintf(w, "\n=== Starting deck (%d cards) ===\n", engine.StartingDeckSize)
	for _, c := range engine.AllCards {
		fmt.Fprintf(w, "%-8s %2d  (%.1f%%)\n", c, counts[c], float64(counts[c])/engine.StartingDeckSize*100)
	}
	fmt.Fprintf(w, "Draws: %d per player, %d cards each, Joker never drawn\n", engine.StartingDraws, engine.DrawCount)
}

// simulate plays games where both players pick uniformly random cards and
// occasionally spend a draw first.
func simulate(games int, seed int64, drawChance float64) SimulationResult {
	decks := engine.NewDeckFactory(seed)
	rng := rand.New(rand.NewSource(seed))
	result := SimulationResult{Games: games, RoundOutcomes: make(map[engine.Outcome]int)}
	now := time.Unix(0, 0)

	for g := 0; g < games; g++ {
		rec := engine.NewGameRecord(fmt.Sprintf("sim-%d", g), "p1", "p2", decks, now)
		for !engine.IsOver(rec) {
			seat, _ := rec.SeatOf(rec.CurrentTurn)
			if rng.Float64() < drawChance {
				_ = rec.DrawCards(seat, decks.DrawCards(engine.DrawCount))
			}
			round, err := rec.PlayCard(seat, rng.Intn(len(rec.Players[seat].Deck)))
			if err != nil {
				break
			}
			if round.Winner != nil {
				result.RoundOutcomes[*round.Winner]++
			}
		}

		result.TotalRounds += len(rec.Rounds)
		if engine.DecideGameOutcome(rec) == engine.Player1 {
			result.Player1Wins++
		} else {
			result.Player2Wins++
		}
	}
	return result
}

func printSimulation(w io.Writer, r SimulationResult, took time.Duration) {
	fmt.Fprintf(w, "\n=== %d random games (%s) ===\n", r.Games, took.Round(time.Millisecond))
	if r.Games == 0 {
		return
	}
	fmt.Fprintf(w, "Player1 wins: %d (%.1f%%)\n", r.Player1Wins, float64(r.Player1Wins)/float64(r.Games)*100)
	fmt.Fprintf(w, "Player2 wins: %d (%.1f%%)\n", r.Player2Wins, float64(r.Player2Wins)/float64(r.Games)*100)
	fmt.Fprintf(w, "Average rounds: %.1f\n", r.AvgRounds())
	fmt.Fprintf(w, "Round outcomes: player1 %d, player2 %d, draw %d\n",
		r.RoundOutcomes[engine.Player1], r.RoundOutcomes[engine.Player2], r.RoundOutcomes[engine.Draw])
}

// Command duelbot signs in two guest players and lets them play full games
// against each other over the public REST API and the realtime channel.
// It is a smoke test for a running server and a sparring partner for the
// card selection heuristics in strategy.go.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/transport/websocket"
)

const readTimeout = 30 * time.Second

// GameSummary is how one finished game ended
type GameSummary struct {
	GameID  string
	Winner  string
	Rounds  int
	Actions int
}

func main() {
	cmd := &cli.Command{
		Name:  "duelbot",
		Usage: "Play bot-vs-bot games against a running Card Duel server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "game server URL"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "number of games to play"},
			&cli.BoolFlag{Name: "private", Usage: "create private games with a room code"},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("duelbot: %v", err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	serverURL := cmd.String("url")
	log.Printf("Connecting to game server at %s", serverURL)

	alice, bob := NewClient(serverURL), NewClient(serverURL)
	for _, c := range []*Client{alice, bob} {
		if err := c.Guest(ctx); err != nil {
			return fmt.Errorf("guest login: %w", err)
		}
	}
	log.Printf("Players: %s vs %s", alice.session.User.Username, bob.session.User.Username)

	wins := map[string]int{}
	games := int(cmd.Int("games"))
	for i := 1; i <= games; i++ {
		summary, err := playGame(ctx, alice, bob, cmd.Bool("private"), cmd.Bool("v"))
		if err != nil {
			return fmt.Errorf("game %d: %w", i, err)
		}
		wins[summary.Winner]++
		log.Printf("Game %d (%s): winner %s after %d rounds", i, summary.GameID, nameOf(summary.Winner, alice, bob), summary.Rounds)
	}

	log.Printf("Result: %s %d - %d %s",
		alice.session.User.Username, wins[alice.UserID()], wins[bob.UserID()], bob.session.User.Username)
	return nil
}

func nameOf(userID string, clients ...*Client) string {
	for _, c := range clients {
		if c.UserID() == userID {
			return c.session.User.Username
		}
	}
	return userID
}

// playGame deals a game from p1 against p2 and runs both bots until it ends
func playGame(ctx context.Context, p1, p2 *Client, private, verbose bool) (*GameSummary, error) {
	view, err := p1.CreateGame(ctx, p2.UserID(), private)
	if err != nil {
		return nil, err
	}
	if private {
		log.Printf("Private game %s, room code %s", view.ID, view.RoomCode)
	}

	results := make([]*GameSummary, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range []*Client{p1, p2} {
		i, c := i, c
		g.Go(func() error {
			conn, err := c.Dial(gctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			s, err := playBot(gctx, conn, c.UserID(), view.ID, NewStrategy(c.UserID()), verbose)
			results[i] = s
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if results[0].Winner != results[1].Winner {
		return nil, fmt.Errorf("bots disagree on the winner: %q vs %q", results[0].Winner, results[1].Winner)
	}
	results[0].Actions += results[1].Actions
	return results[0], nil
}

// playBot joins sessionID and acts whenever it is userID's turn, until the
// game is over.
func playBot(ctx context.Context, conn *gws.Conn, userID, sessionID string, strategy *Strategy, verbose bool) (*GameSummary, error) {
	if err := send(conn, websocket.KindJoinGame, websocket.JoinGamePayload{SessionID: sessionID}); err != nil {
		return nil, err
	}

	summary := &GameSummary{GameID: sessionID}
	var (
		last    *websocket.GameView
		actedAt int64
		drawing bool
	)

	play := func(view *websocket.GameView) error {
		summary.Actions++
		return send(conn, websocket.KindPlayCard, websocket.PlayCardPayload{SessionID: sessionID, CardIndex: strategy.Choose(view)})
	}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var env websocket.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return summary, fmt.Errorf("read: %w", err)
		}

		switch env.Type {
		case websocket.EventGameUpdate:
			var view websocket.GameView
			if err := json.Unmarshal(env.Payload, &view); err != nil {
				return summary, fmt.Errorf("parse game update: %w", err)
			}
			last = &view
			strategy.Observe(&view)
			summary.Rounds = len(view.Rounds)

			if view.Status == engine.StatusFinished {
				summary.Winner = view.Winner
				return summary, nil
			}
			if view.CurrentTurn != userID || view.Version <= actedAt {
				continue
			}
			actedAt = view.Version

			if strategy.ShouldDraw(&view) {
				drawing = true
				summary.Actions++
				if err := send(conn, websocket.KindDrawCards, websocket.DrawCardsPayload{SessionID: sessionID}); err != nil {
					return summary, err
				}
				continue
			}
			drawing = false
			if err := play(&view); err != nil {
				return summary, err
			}

		case websocket.EventGameOver:
			var p websocket.GameOverPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return summary, fmt.Errorf("parse game over: %w", err)
			}
			summary.Winner = p.Winner

		case websocket.EventError:
			var p websocket.ErrorPayload
			json.Unmarshal(env.Payload, &p)
			if verbose {
				log.Printf("[%s] server error: %s", userID, p.Message)
			}
			if summary.Winner != "" {
				return summary, nil
			}
			// a refused draw leaves the turn with us and no new update is coming
			if drawing && last != nil {
				drawing = false
				if err := play(last); err != nil {
					return summary, err
				}
				continue
			}
			if p.Message == "Game not found" || p.Message == "Player not found in game" {
				return summary, errors.New(p.Message)
			}

		default:
			if verbose {
				log.Printf("[%s] %s", userID, env.Type)
			}
		}
	}
}

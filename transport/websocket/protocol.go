package websocket

import (
	"encoding/json"

	"github.com/samber/lo"

	"github.com/cardduel/server/game/engine"
)

// InboundKind names an action a client may send
type InboundKind string

const (
	KindJoinGame  InboundKind = "joinGame"
	KindPlayCard  InboundKind = "playCard"
	KindDrawCards InboundKind = "drawCards"
)

// Outbound event names
const (
	EventGameUpdate    = "gameUpdate"
	EventRoundComplete = "roundComplete"
	EventCardDrawn     = "cardDrawn"
	EventGameOver      = "gameOver"
	EventError         = "error"
)

// Envelope is the frame format in both directions
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type JoinGamePayload struct {
	SessionID string `json:"sessionId"`
}

type PlayCardPayload struct {
	SessionID string `json:"sessionId"`
	CardIndex int    `json:"cardIndex"`
}

// DrawCardsPayload always draws engine.DrawCount cards.
type DrawCardsPayload struct {
	SessionID string `json:"sessionId"`
}

type RoundCompletePayload struct {
	Round  engine.Round   `json:"round"`
	Winner engine.Outcome `json:"winner"`
}

type CardDrawnPayload struct {
	PlayerID       string `json:"playerId"`
	RemainingDraws int    `json:"remainingDraws"`
}

type GameOverPayload struct {
	Winner string `json:"winner"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// PlayerView is one seat as seen by a recipient. Deck is only filled in
// for the recipient's own seat.
type PlayerView struct {
	ID             string            `json:"id"`
	CardsCount     int               `json:"cardsCount"`
	DrawsRemaining int               `json:"drawsRemaining"`
	Deck           []engine.CardKind `json:"deck"`
}

// GameView is the game as one recipient is allowed to see it
type GameView struct {
	ID          string         `json:"id"`
	Version     int64          `json:"version"`
	CurrentTurn string         `json:"currentTurn"`
	Status      engine.Status  `json:"status"`
	RoomCode    string         `json:"roomCode,omitempty"`
	Players     []PlayerView   `json:"players"`
	Rounds      []engine.Round `json:"rounds"`
	Winner      string         `json:"winner,omitempty"`
}

// NewGameView filters rec for viewerID. Opponent decks are reduced to a count.
func NewGameView(rec *engine.GameRecord, viewerID string) *GameView {
	players := lo.Map(rec.Players[:], func(p engine.Player, _ int) PlayerView {
		v := PlayerView{
			ID:             p.UserID,
			CardsCount:     len(p.Deck),
			DrawsRemaining: p.DrawsRemaining,
		}
		if p.UserID == viewerID {
			v.Deck = append([]engine.CardKind{}, p.Deck...)
		}
		return v
	})

	return &GameView{
		ID:          rec.ID,
		Version:     rec.Version,
		CurrentTurn: rec.CurrentTurn,
		Status:      rec.Status,
		RoomCode:    rec.RoomCode,
		Players:     players,
		Rounds:      rec.Clone().Rounds,
		Winner:      rec.Winner,
	}
}

// Event is one outbound message. When View is set the payload is built per
// recipient from the recipient's user id.
type Event struct {
	Type    string
	Payload interface{}
	View    func(userID string) interface{}
}

func (e Event) encode(userID string) ([]byte, error) {
	payload := e.Payload
	if e.View != nil {
		payload = e.View(userID)
	}
	return json.Marshal(outboundEnvelope{Type: e.Type, Payload: payload})
}

// gameUpdate is the per-recipient snapshot event for rec
func gameUpdate(rec *engine.GameRecord) Event {
	snapshot := rec.Clone()
	return Event{
		Type: EventGameUpdate,
		View: func(userID string) interface{} { return NewGameView(snapshot, userID) },
	}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Message: message}}
}

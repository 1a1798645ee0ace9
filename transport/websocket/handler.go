package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cardduel/server/auth"
	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/service"
	"github.com/cardduel/server/logger"
)

const authErrorMessage = "Authentication error"

// TokenVerifier resolves a bearer token to an identity
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Handler upgrades authenticated requests and turns inbound actions into
// game service calls
type Handler struct {
	hub      *Hub
	games    service.GameService
	tokens   TokenVerifier
	upgrader *websocket.Upgrader
}

// NewHandler creates the /ws handler. allowedOrigin of "" or "*" accepts
// any origin.
func NewHandler(hub *Hub, games service.GameService, tokens TokenVerifier, allowedOrigin string) *Handler {
	return &Handler{
		hub:      hub,
		games:    games,
		tokens:   tokens,
		upgrader: newUpgrader(allowedOrigin),
	}
}

// ServeHTTP handles WebSocket requests from clients
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WebSocketContext(r)

	identity, authErr := h.tokens.Verify(bearerToken(r))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("WebSocket upgrade failed")
		return
	}

	if authErr != nil {
		logger.Warn(ctx).Err(authErr).Str("remote_addr", r.RemoteAddr).Msg("WebSocket authentication failed")
		rejectConnection(conn)
		return
	}

	ctx = logger.WithFields(ctx, map[string]interface{}{"user_id": identity.UserID})
	client := newClient(h.hub, conn, identity, ctx, h.handleMessage)
	h.hub.Register(client)

	logger.Info(ctx).Str("username", identity.Username).Msg("Player connected")

	go client.writePump()
	go client.readPump()
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// rejectConnection reports the auth failure and closes with a policy violation
func rejectConnection(conn *websocket.Conn) {
	defer conn.Close()

	deadline := time.Now().Add(writeWait)
	conn.SetWriteDeadline(deadline)
	if data, err := errorEvent(authErrorMessage).encode(""); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, authErrorMessage), deadline)
}

// handleMessage runs on the client's read goroutine, so one connection's
// actions are handled in the order they were sent.
func (h *Handler) handleMessage(c *Client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.hub.SendTo(c, errorEvent("Invalid message"))
		return
	}

	ctx := c.ctx
	switch InboundKind(env.Type) {
	case KindJoinGame:
		var p JoinGamePayload
		if !h.decode(c, env.Payload, &p) {
			return
		}
		h.joinGame(ctx, c, p)

	case KindPlayCard:
		var p PlayCardPayload
		if !h.decode(c, env.Payload, &p) {
			return
		}
		h.playCard(ctx, c, p)

	case KindDrawCards:
		var p DrawCardsPayload
		if !h.decode(c, env.Payload, &p) {
			return
		}
		h.drawCards(ctx, c, p)

	default:
		logger.Debug(ctx).Str("type", env.Type).Msg("Unknown message type")
		h.hub.SendTo(c, errorEvent("Unknown message type: "+env.Type))
	}
}

func (h *Handler) decode(c *Client, raw json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		h.hub.SendTo(c, errorEvent("Invalid payload"))
		return false
	}
	return true
}

func (h *Handler) fail(ctx context.Context, c *Client, action InboundKind, err error) {
	logger.Debug(ctx).Err(err).Str("action", string(action)).Msg("Action rejected")
	h.hub.SendTo(c, errorEvent(service.UserMessage(err)))
}

func (h *Handler) joinGame(ctx context.Context, c *Client, p JoinGamePayload) {
	game, err := h.games.GetGame(ctx, p.SessionID)
	if err != nil {
		h.fail(ctx, c, KindJoinGame, err)
		return
	}
	if _, ok := game.SeatOf(c.UserID()); !ok {
		h.fail(ctx, c, KindJoinGame, service.ErrPlayerNotFound)
		return
	}
	h.hub.Join(c, game.ID, game.Version, gameUpdate(game))
}

func (h *Handler) playCard(ctx context.Context, c *Client, p PlayCardPayload) {
	res, err := h.games.PlayCard(ctx, p.SessionID, c.UserID(), p.CardIndex)
	if err != nil {
		h.fail(ctx, c, KindPlayCard, err)
		return
	}

	var events []Event
	if round := res.CompletedRound; round != nil {
		events = append(events, Event{
			Type:    EventRoundComplete,
			Payload: RoundCompletePayload{Round: *round, Winner: *round.Winner},
		})
	}
	events = append(events, gameUpdate(res.Game))
	h.hub.Publish(&Batch{SessionID: res.Game.ID, Version: res.Game.Version, Events: events})

	if engine.IsOver(res.Game) {
		h.endGame(ctx, c, res.Game)
	}
}

// endGame settles a game whose deck ran out. Only the call that actually
// finishes the game announces it.
func (h *Handler) endGame(ctx context.Context, c *Client, game *engine.GameRecord) {
	winner := engine.WinnerID(game)
	res, err := h.games.EndGame(ctx, game.ID, winner)
	switch {
	case err == nil:
		h.hub.Publish(&Batch{
			SessionID: game.ID,
			Version:   res.Game.Version,
			Events: []Event{
				{Type: EventGameOver, Payload: GameOverPayload{Winner: res.Game.Winner}},
				gameUpdate(res.Game),
			},
		})
	case errors.Is(err, service.ErrGameFinished):
		logger.Debug(ctx).Str("session_id", game.ID).Msg("Game already ended by another action")
	default:
		logger.Error(ctx).Err(err).Str("session_id", game.ID).Msg("Failed to end game")
		h.hub.SendTo(c, errorEvent(service.UserMessage(err)))
	}
}

func (h *Handler) drawCards(ctx context.Context, c *Client, p DrawCardsPayload) {
	res, err := h.games.DrawCards(ctx, p.SessionID, c.UserID(), engine.DrawCount)
	if err != nil {
		h.fail(ctx, c, KindDrawCards, err)
		return
	}

	h.hub.Publish(&Batch{
		SessionID: res.Game.ID,
		Version:   res.Game.Version,
		Events: []Event{
			{Type: EventCardDrawn, Payload: CardDrawnPayload{PlayerID: res.PlayerID, RemainingDraws: res.RemainingDraws}},
			gameUpdate(res.Game),
		},
	})
}

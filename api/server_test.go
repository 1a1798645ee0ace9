package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardduel/server/auth"
	"github.com/cardduel/server/config"
	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/history"
	"github.com/cardduel/server/game/service"
	"github.com/cardduel/server/game/session"
	"github.com/cardduel/server/repository/db"
	"github.com/cardduel/server/transport/websocket"
)

type testServer struct {
	server *Server
	games  service.GameService
	users  *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	gamesRepo := db.NewGameRepository(conn)
	games := service.NewGameService(service.Deps{
		Games:    gamesRepo,
		Store:    session.NewStore(gamesRepo),
		Recorder: history.NewRecorder(db.NewHistoryRepository(conn)),
		Decks:    engine.NewDeckFactory(5),
	})
	users := auth.NewService(db.NewUserRepository(conn), auth.NewTokenManager("api-secret", time.Hour))

	return &testServer{
		server: NewServer(games, users, nil),
		games:  games,
		users:  users,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)
	return w
}

func (ts *testServer) guest(t *testing.T) *auth.Session {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/auth/guest", "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s auth.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	return &s
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/auth/register", "", credentials{Username: "alice", Password: "hunter2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered auth.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "alice", registered.User.Username)

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", credentials{Username: "alice", Password: "hunter2"})
	require.Equal(t, http.StatusOK, w.Code)

	var loggedIn auth.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loggedIn))
	assert.Equal(t, registered.User.UserID, loggedIn.User.UserID)

	w = ts.do(t, http.MethodGet, "/api/users/me", loggedIn.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profile auth.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "alice", profile.Username)
	assert.False(t, profile.IsGuest)
	assert.Zero(t, profile.Stats.GamesPlayed)
}

func TestRegister_Errors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/auth/register", "", credentials{Username: "bob", Password: "pw"})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"duplicate username", credentials{Username: "bob", Password: "other"}, http.StatusConflict},
		{"short username", credentials{Username: "ab", Password: "pw"}, http.StatusBadRequest},
		{"missing password", credentials{Username: "carol"}, http.StatusBadRequest},
		{"malformed body", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decodeError(t, w))
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/auth/register", "", credentials{Username: "dave", Password: "right"})

	w := ts.do(t, http.MethodPost, "/api/auth/login", "", credentials{Username: "dave", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", credentials{Username: "nobody", Password: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication required", decodeError(t, w))

	w = ts.do(t, http.MethodGet, "/api/users/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired token", decodeError(t, w))

	other := auth.NewTokenManager("someone-else", time.Hour)
	forged, _, err := other.Issue(auth.Identity{UserID: "u1", Username: "mallory"})
	require.NoError(t, err)
	w = ts.do(t, http.MethodGet, "/api/users/me", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndGetGame(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.guest(t)
	bob := ts.guest(t)

	w := ts.do(t, http.MethodPost, "/api/games", alice.Token, map[string]interface{}{
		"opponentId": bob.User.UserID,
		"isPrivate":  true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created websocket.GameView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Len(t, created.RoomCode, 6)
	assert.Equal(t, engine.StatusPlaying, created.Status)
	assert.Equal(t, alice.User.UserID, created.CurrentTurn)
	require.Len(t, created.Players, 2)
	assert.Len(t, created.Players[0].Deck, engine.StartingDeckSize)
	assert.Nil(t, created.Players[1].Deck, "opponent hand must stay hidden")

	t.Run("by id as the opponent", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/games/"+created.ID, bob.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var view websocket.GameView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Nil(t, view.Players[0].Deck)
		assert.Len(t, view.Players[1].Deck, engine.StartingDeckSize)
		assert.Equal(t, engine.StartingDeckSize, view.Players[0].CardsCount)
	})

	t.Run("by room code", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/games/room/"+created.RoomCode, alice.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var view websocket.GameView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, created.ID, view.ID)
	})

	t.Run("unknown game", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/games/missing", alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Game not found", decodeError(t, w))

		w = ts.do(t, http.MethodGet, "/api/games/room/ZZZZZZ", alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCreateGame_InvalidOpponent(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.guest(t)

	w := ts.do(t, http.MethodPost, "/api/games", alice.Token, map[string]interface{}{"opponentId": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/games", alice.Token, map[string]interface{}{"opponentId": alice.User.UserID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "players must differ")

	w = ts.do(t, http.MethodPost, "/api/games", alice.Token, map[string]interface{}{"opponentId": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Opponent not found", decodeError(t, w))
}

func TestPlayerStatsAndHistory(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.guest(t)
	bob := ts.guest(t)
	ctx := context.Background()

	rec, err := ts.games.CreateGame(ctx, alice.User.UserID, bob.User.UserID, false)
	require.NoError(t, err)
	_, err = ts.games.PlayCard(ctx, rec.ID, alice.User.UserID, 0)
	require.NoError(t, err)
	_, err = ts.games.EndGame(ctx, rec.ID, bob.User.UserID)
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/players/"+bob.User.UserID+"/stats", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats engine.PlayerStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalGames)
	assert.Equal(t, 1, stats.Wins)

	w = ts.do(t, http.MethodGet, "/api/players/"+alice.User.UserID+"/history?limit=5", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var hist struct {
		Count     int                   `json:"count"`
		Histories []*engine.GameHistory `json:"histories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Equal(t, 1, hist.Count)
	require.Len(t, hist.Histories, 1)
	assert.Equal(t, rec.ID, hist.Histories[0].GameID)
	assert.Equal(t, bob.User.UserID, hist.Histories[0].WinnerID)

	w = ts.do(t, http.MethodGet, "/api/users/me", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile auth.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, engine.UserStats{GamesPlayed: 1, Wins: 1}, profile.Stats)
	assert.Equal(t, 100.0, profile.WinRate)

	w = ts.do(t, http.MethodGet, "/api/players/"+alice.User.UserID+"/history?limit=abc", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlayerHistory_Empty(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.guest(t)

	w := ts.do(t, http.MethodGet, "/api/players/nobody/history", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"histories":[]}`, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrPlayerNotFound, http.StatusNotFound},
		{auth.ErrUserNotFound, http.StatusNotFound},
		{service.ErrInvalidCard, http.StatusBadRequest},
		{service.ErrNoDrawsRemaining, http.StatusBadRequest},
		{service.ErrGameFinished, http.StatusConflict},
		{auth.ErrUsernameTaken, http.StatusConflict},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{service.ErrPersistence, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestMount(t *testing.T) {
	ts := newTestServer(t)
	ts.server.Mount("/mcp", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := ts.do(t, http.MethodPost, "/mcp", "", nil)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

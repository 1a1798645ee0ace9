package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/cardduel/server/auth"
	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/service"
	"github.com/cardduel/server/logger"
	"github.com/cardduel/server/transport/websocket"
)

type contextKey string

const identityKey contextKey = "identity"

// Server represents the REST API server
type Server struct {
	games  service.GameService
	users  *auth.Service
	ws     http.Handler
	router *mux.Router
}

// NewServer creates a new API server. ws serves /ws and may be nil.
func NewServer(games service.GameService, users *auth.Service, ws http.Handler) *Server {
	s := &Server{
		games:  games,
		users:  users,
		ws:     ws,
		router: mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(logger.HTTPMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()

	// Accounts
	api.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/auth/guest", s.handleGuest).Methods("POST")
	api.Handle("/users/me", s.requireAuth(s.handleProfile)).Methods("GET")

	// Games (room lookup must be before the {id} pattern)
	api.Handle("/games", s.requireAuth(s.handleCreateGame)).Methods("POST")
	api.Handle("/games/room/{code}", s.requireAuth(s.handleGetGameByRoom)).Methods("GET")
	api.Handle("/games/{id}", s.requireAuth(s.handleGetGame)).Methods("GET")

	// Players
	api.Handle("/players/{id}/stats", s.requireAuth(s.handlePlayerStats)).Methods("GET")
	api.Handle("/players/{id}/history", s.requireAuth(s.handlePlayerHistory)).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.ws != nil {
		s.router.Handle("/ws", s.ws)
	}
}

// Mount attaches an extra handler, such as the MCP endpoint, at path.
func (s *Server) Mount(path string, h http.Handler) {
	s.router.Handle(path, h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure picks the status and message for err. Unexpected errors are
// logged and reported generically.
func respondFailure(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(ctx).Err(err).Msg("Request failed")
	}
	respondError(w, status, messageFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrInvalidCard),
		errors.Is(err, service.ErrNoDrawsRemaining),
		errors.Is(err, auth.ErrInvalidUsername):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrGameFinished), errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	var ge *service.GameError
	if errors.As(err, &ge) {
		return service.UserMessage(err)
	}
	switch {
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrUsernameTaken),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return err.Error()
	}
	return "Something went wrong"
}

// requireAuth verifies the bearer token and stores the caller's identity in
// the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		identity, err := s.users.Tokens().Verify(strings.TrimSpace(token))
		if err != nil {
			logger.Debug(r.Context()).Err(err).Msg("Rejected token")
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		ctx = logger.WithFields(ctx, map[string]interface{}{"user_id": identity.UserID})
		next(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) auth.Identity {
	id, _ := ctx.Value(identityKey).(auth.Identity)
	return id
}

// Account handlers

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusBadRequest, "Password is required")
			return
		}
		respondFailure(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondFailure(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	session, err := s.users.Guest(r.Context())
	if err != nil {
		respondFailure(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.users.Profile(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		respondFailure(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// Game handlers

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpponentID string `json:"opponentId"`
		IsPrivate  bool   `json:"isPrivate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	caller := identityFrom(r.Context()).UserID
	if req.OpponentID != "" && req.OpponentID != caller {
		if _, err := s.users.Profile(r.Context(), req.OpponentID); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				respondError(w, http.StatusNotFound, "Opponent not found")
				return
			}
			respondFailure(r.Context(), w, err)
			return
		}
	}

	rec, err := s.games.CreateGame(r.Context(), caller, req.OpponentID, req.IsPrivate)
	if err != nil {
		respondFailure(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusCreated, websocket.NewGameView(rec, caller))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	rec, err := s.games.GetGame(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondFailure(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, websocket.NewGameView(rec, identityFrom(r.Context()).UserID))
}

func (s *Server) handleGetGameByRoom(w http.ResponseWriter, r *http.Request) {
	rec, err := s.games.GetGameByRoomCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		respondFailure(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, websocket.NewGameView(rec, identityFrom(r.Context()).UserID))
}

// Player handlers

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.games.PlayerStats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondFailure(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePlayerHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = l
	}

	histories, err := s.games.PlayerHistory(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondFailure(r.Context(), w, err)
		return
	}
	if histories == nil {
		histories = []*engine.GameHistory{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(histories),
		"histories": histories,
	})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

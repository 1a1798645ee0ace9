// Package api serves the Card Duel REST API.
//
// Endpoints:
//
// Accounts:
//   - POST /api/auth/register - Create an account, returns a session token
//   - POST /api/auth/login - Sign in, returns a session token
//   - POST /api/auth/guest - Create a throwaway guest account
//   - GET /api/users/me - Profile with win/loss counters
//
// Games:
//   - POST /api/games - Deal a game between the caller and an opponent
//   - GET /api/games/{id} - Current game state
//   - GET /api/games/room/{code} - Look up a private game by room code
//
// Players:
//   - GET /api/players/{id}/stats - Aggregates over finished games
//   - GET /api/players/{id}/history?limit=N - Most recent finished games
//
// Misc:
//   - GET /health - Liveness probe
//   - GET /ws - Realtime game channel (see transport/websocket)
//
// Every endpoint except /health, register, login and guest requires an
// "Authorization: Bearer <token>" header. Game state is rendered for the
// caller: only the caller's own hand is included.
//
// Errors are returned as JSON with an HTTP status derived from the
// underlying error:
//
//	{
//	  "error": "Game not found"
//	}
package api

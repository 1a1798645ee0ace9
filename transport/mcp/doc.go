// Package mcp exposes the card duel REST API as Model Context Protocol
// tools so AI agents can sign in, create duels and read results.
//
// The Client is a thin proxy: every tool is one REST call against a running
// server. Playing cards happens over the realtime connection and is not
// offered as a tool.
//
// Tools:
//   - guest_login: create a guest account and keep its token for later calls
//   - login: sign in with username and password
//   - my_profile: the signed-in account with win/loss counters
//   - create_game: start a duel against another player
//   - get_game: the game as the signed-in player sees it
//   - get_game_by_room: resolve a private room code
//   - player_stats: aggregate results of a player's finished games
//   - player_history: a player's most recent finished games
//   - game_rules: how rounds and games are decided
//
// Transport Modes:
//
// The server can be served over stdio for local MCP clients or mounted on
// the HTTP server at /mcp. The HTTP endpoint uses NewRequestClient, which
// acts as each request's bearer token and never stores one.
package mcp

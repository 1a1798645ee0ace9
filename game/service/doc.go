// Package service coordinates card duel sessions.
//
// The service package implements:
//   - Session creation with fresh decks and private room codes
//   - Card play and draw actions against the rule engine
//   - End-of-game reconciliation into history and player stats
//   - Per-session serialization of mutating operations
//
// Core Interfaces:
//
// GameService is the coordinator used by the transports. GameRepository is
// the durable store for live game records, SessionStore the in-memory view of
// committed records, and HistoryRecorder the end-of-game writer.
//
// Concurrency:
//
// PlayCard, DrawCards and EndGame hold a per-session lock for the whole
// read-modify-write including the repository round-trip. The new record is
// computed on a clone, saved, and only then published to the SessionStore, so
// a failed save leaves the cached value untouched. EndGame saves the finished
// record before writing history, and a same-winner retry completes a game
// whose history write failed.
//
// Usage:
//
//	svc := service.NewGameService(service.Deps{
//		Games:    repo,
//		Store:    session.NewStore(repo),
//		Recorder: history.NewRecorder(historyRepo),
//	})
//
//	game, err := svc.CreateGame(ctx, "alice", "bob", false)
//	result, err := svc.PlayCard(ctx, game.ID, "alice", 0)
package service

// Package engine provides the rules of the card duel.
//
// The engine package implements:
//   - Round resolution between two played cards
//   - Deck construction and replacement draws
//   - The per-session game record and its state machine
//   - End-of-game history snapshots
//
// Core Types:
//
// CardKind is a closed enumeration of the seven card kinds. GameRecord is the
// authoritative state of one session; it is treated as an immutable value once
// committed, and every mutation is applied to a Clone.
//
// Rules:
//
// Base cards beat each other cyclically (Stone beats Sheers, Sheers beats
// Sheets, Sheets beats Stone). Boulder, Cloth and Sword are upgrades of Stone,
// Sheets and Sheers and beat exactly that card. The Joker beats every base card
// and loses to every upgrade.
//
// Usage:
//
//	decks := engine.DefaultDeckFactory()
//	rec := engine.NewGameRecord(id, "alice", "bob", decks, time.Now())
//
//	next := rec.Clone()
//	round, err := next.PlayCard(0, 3)
//	if err != nil {
//		return err
//	}
package engine

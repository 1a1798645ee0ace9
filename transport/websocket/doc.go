// Package websocket is the realtime transport for card duel sessions.
//
// A Hub owns every connection and every per-session subscriber group. All
// writes to a connection go through the hub's event loop, so a client is
// never written to after it has been unregistered.
//
// Connection lifecycle:
//
//  1. The client connects to /ws with a token (?token= or a Bearer header).
//     An invalid token gets an error event and a policy-violation close.
//  2. joinGame subscribes the connection to a session and sends it a
//     snapshot of the game as that player sees it.
//  3. playCard and drawCards are forwarded to the game service. Each
//     committed change is fanned out to the session's subscribers as one
//     batch of events.
//  4. Disconnects are logged and have no effect on the game.
//
// Message protocol:
//
// Every frame is one JSON envelope {"type": ..., "payload": ...}.
//
//   - Inbound: joinGame {sessionId}, playCard {sessionId, cardIndex},
//     drawCards {sessionId, count?}
//   - Outbound: gameUpdate, roundComplete, cardDrawn, gameOver, error
//
// Ordering:
//
// Batches carry the record version they committed. The hub delivers a
// session's batches in version order, holding back any batch that arrives
// ahead of its predecessor, so every subscriber observes changes in the
// order the game service serialized them.
package websocket

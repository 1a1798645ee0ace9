// Package session holds the in-memory view of active card duel sessions.
//
// The session package implements:
//   - A concurrent cache of committed game records keyed by session id
//   - Load-through from the game repository on a cache miss
//   - Idle eviction of abandoned sessions on a schedule
//   - A file-backed game repository
//
// Core Types:
//
// Store is the session cache. It never mutates a record; writers publish a
// new value with Put after it has been persisted. Records removed with Remove
// are tombstoned so a load that raced the removal cannot resurrect them.
//
// FilePersistence stores one JSON document per session in a directory and
// satisfies service.GameRepository.
//
// Usage:
//
//	repo, err := session.NewFilePersistence("sessions")
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := session.NewStore(repo)
//
//	sched, err := session.StartEviction(store, 10*time.Minute, 2*time.Hour)
//	defer sched.Shutdown()
package session

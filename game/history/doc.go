// Package history writes the end-of-game snapshot of a finished session and
// serves per-player statistics from the stored snapshots.
//
// A snapshot and the participants' account counters are written together
// exactly once per game. Sinks such as the message queue publisher or the
// object-store archiver are told about each new snapshot after it has been
// committed; their failures are logged and never undo the write.
package history

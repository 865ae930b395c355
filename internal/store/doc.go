// Package store provides session-scoped conversation persistence using SQLite.
//
// # Architecture
//
// Two interfaces split the package's surface:
//
//   - Store: the conversation log (append-only messages) plus a small
//     session-state key/value area for the conversation correlator, the
//     pending message saved across an authorization redirect, and the
//     current polling identity
//   - RecordQuerier: the read-only records contract consumed by admin
//     pages living outside this module (paginated, filterable
//     conversation listings and per-conversation detail)
//
// SQLiteStore implements both. MemoryStore implements Store only and is
// the degraded mode: Open falls back to it when the database cannot be
// opened, so storage unavailability never fails the caller - the log is
// simply empty and non-persistent.
//
// # Invariants
//
// Messages are append-only. AppendMessage never reorders or removes prior
// entries, and Messages returns entries in insertion order. All reads and
// writes are scoped to a single session identity; there are no
// cross-session reads through Store.
package store

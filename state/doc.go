// Package state implements the session state container: a single source of
// truth for one workflow run with snapshot-on-write history, per-leaf change
// tracking, subscriptions, and checkpoint/rollback.
//
// Every snapshot handed out by the store is a deep copy. Callers, executors
// and subscribers can never mutate the store's internal state through a
// value they were given, and the store never retains a reference to a value
// a caller passed in after the update returns.
package state

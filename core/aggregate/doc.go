// Package aggregate keeps the derived fields of the catalog consistent with
// their source rows: chapter and course durations, course rating
// statistics, the lecture requires-quiz flag and feedback reaction counters.
//
// Every recomputation is a full, idempotent derivation from the source rows.
// The aggregate root row is locked first and the new value is computed and
// written by a single statement inside the same transaction, so concurrent
// recomputes of one root serialize instead of losing updates. Recomputes of
// different roots share nothing and run in parallel.
//
// Leaf writers commit their own change first and then call the Dispatcher,
// which sequences the cascade (chapter, then course) and decides which
// failures are skipped and which are surfaced.
package aggregate

// Package engine reconciles the local store with the backend of record.
//
// OPERATIONS:
//
// Every pull and push is independently retryable and records one SyncRun
// (started, then success or failed with the error text). Pulls replace their
// local tables wholesale inside one transaction. Push sends pending meal logs
// in fixed-size batches through an ignore-duplicates upsert keyed by sync_key
// and marks exactly the rows of each successful batch synced, so a failure
// partway through is safe to retry.
//
// Full sync order is fixed:
//  1. push meal logs, before any local table is replaced
//  2. pull dining halls
//  3. pull chefs
//  4. pull employees and meal configs
//  5. pull overrides, which read the employee set from step 4
//  6. heartbeat
//
// A failing step is logged and recorded; the remaining steps still run.
//
// SCHEDULER:
//
// Run is a single-consumer event loop in the manner of a work queue. Timers
// and connectivity probes enqueue events; one goroutine processes them in
// order. A sync runs at start, on every offline to online transition and on
// the sync interval while online. Heartbeats have their own interval and are
// skipped while offline. Only one full sync runs at a time; a request that
// arrives while one is in flight gets ErrSyncInProgress.
package engine

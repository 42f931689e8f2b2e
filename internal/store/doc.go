// Package store provides SQLite-backed durable storage for the meal kiosk.
//
// The store holds two kinds of data:
//   - Replicated reference data: employees, meal configs, daily overrides,
//     dining halls and chefs. Each table is replaced wholesale by a pull.
//   - Locally owned facts: meal logs, kiosk configuration, meal slots and the
//     sync run history.
//
// # Invariants
//
// Single writer: the pool is limited to one connection. Methods that take a
// transaction never touch s.db until the transaction is finished.
//
// Idempotent attendance: meal_logs.sync_key is UNIQUE and inserts use
// ON CONFLICT(sync_key) DO NOTHING, so a deterministic key can only ever
// produce one row.
//
// Atomic replacement: employees and meal configs are replaced in one
// transaction so readers never observe one table updated and the other stale.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Two drivers are supported: mattn/go-sqlite3 ("sqlite3", cgo, default) and
// modernc.org/sqlite ("sqlite", pure Go) for kiosks built without cgo.
package store

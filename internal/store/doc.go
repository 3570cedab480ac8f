// Package store persists the JSON records served by the resource server.
//
// Every record lives in one table keyed by (resource, id) with its body
// stored as canonical JSON: keys sorted, strings NFC normalized, no HTML
// escaping. Identical records therefore always serialize to identical
// bytes, which keeps ETags stable across restarts.
//
// # Drivers
//
//   - sqlite3 (default): github.com/mattn/go-sqlite3, WAL mode, one
//     connection, schema migrations tracked with PRAGMA user_version.
//   - pgx: github.com/jackc/pgx/v5/stdlib for Postgres.
//
// # Database Configuration (sqlite3)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Listing is always ordered by id ascending, the order json-server uses.
package store

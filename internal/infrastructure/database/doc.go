// Package database provides SQLite persistence for the Dreame bridge.
//
// The bridge stores vacuum state history in a single SQLite file opened
// in WAL mode with foreign keys enforced. Schema changes ship as embedded
// .up.sql migrations applied at startup; rollbacks are not supported.
//
// The connection pool is pinned to a single connection, matching SQLite's
// single-writer model.
package database

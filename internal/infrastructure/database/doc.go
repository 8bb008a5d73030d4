// Package database provides SQLite connectivity and schema migrations
// for Home Sentry.
//
// The database is opened with WAL mode, a busy timeout, and foreign key
// enforcement. SQLite supports a single writer, so the connection pool
// is capped at one open connection.
//
// Migrations are plain SQL files embedded into the binary by the
// top-level migrations package. Filenames follow the pattern
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql for
// rollback. Each migration runs in its own transaction and is recorded
// in the schema_migrations table.
package database

// Package home provides the location hierarchy for Home Sentry.
//
// It defines the spatial model: Homes contain Rooms, and devices are
// assigned to rooms. Both entity types carry full CRUD with an audit
// trail entry per mutation.
//
// The package provides a Repository interface with a SQLite
// implementation, and a Service that layers auditing and parent
// resolution on top of it.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines
// (SQLite WAL mode + connection pooling).
package home

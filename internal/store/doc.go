// Package store owns the SQLite database shared by the session registry,
// recording ledger, and posture step catalog.
//
// It provides connection lifecycle, schema management, and busy-retry
// execution helpers. Domain-specific SQL lives with the components that own
// the rows (session, recording, catalog); this package keeps them on one
// connection with uniform retry and timestamp handling.
package store

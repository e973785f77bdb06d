// Package daemon hosts the long-lived coordinating process. It wires the
// store, registry, ledger, catalog, coordinator and storage provider
// together, serves the HTTP session API and the WebSocket endpoint, and
// enforces single-instance execution with a file lock.
package daemon

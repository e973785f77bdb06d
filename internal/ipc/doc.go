// Package ipc provides the JSON-RPC control channel between the posturesync
// CLI and the daemon, carried over a Unix domain socket next to the daemon
// logs.
package ipc

// Package coordinator is the real-time hub driving the session state
// machine. It owns the live-connection map and per-session broadcast rooms,
// issues the authoritative start and stop timestamps, and mediates every
// outbound message; the registry, ledger and sequencer below it never talk
// to a client connection directly.
//
// Event handlers are boundaries. Each returns a list of (event, audience)
// pairs that the dispatcher encodes once and delivers, and any failure or
// panic inside a handler is reported to the originating connection only.
package coordinator

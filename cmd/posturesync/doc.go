// Command posturesync is the operator CLI for the PostureSync daemon. It
// talks to a running posturesyncd over its Unix control socket and renders
// sessions, recordings and catalog state for the terminal.
package main

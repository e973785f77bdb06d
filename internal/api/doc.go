// Package api holds the data transfer shapes shared by the HTTP surface,
// the WebSocket protocol and the IPC control socket, plus converters from
// the domain aggregates.
package api

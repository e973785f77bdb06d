// Package services defines shared utilities consumed by the session
// registry, recording ledger, and coordinator.
//
// Key responsibilities:
//   - Context helpers that stamp session, device, and connection
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate
//     failures into the error codes reported on the client channel.
//
// Use these helpers when wiring new coordinator logic so operational
// behaviour (error handling, observability) stays uniform across
// components.
package services

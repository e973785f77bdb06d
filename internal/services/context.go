package services

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	deviceIDKey  contextKey = "device_id"
	connIDKey    contextKey = "conn_id"
	eventKey     contextKey = "event"
)

// WithSessionID annotates context with the session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDeviceID annotates context with the device identifier.
func WithDeviceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, deviceIDKey, id)
}

// DeviceIDFromContext extracts the device identifier if present.
func DeviceIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(deviceIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithConnID annotates context with the live connection identifier.
func WithConnID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, connIDKey, id)
}

// ConnIDFromContext extracts the live connection identifier if present.
func ConnIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(connIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEvent annotates context with the inbound event name being handled.
func WithEvent(ctx context.Context, event string) context.Context {
	if event == "" {
		return ctx
	}
	return context.WithValue(ctx, eventKey, event)
}

// EventFromContext returns the inbound event name if present.
func EventFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(eventKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

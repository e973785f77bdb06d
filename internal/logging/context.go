package logging

import (
	"context"
	"log/slog"

	"posturesync/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID is the standardized structured logging key for session identifiers.
	FieldSessionID = "session_id"
	// FieldDeviceID is the standardized structured logging key for device identifiers.
	FieldDeviceID = "device_id"
	// FieldConnID is the standardized structured logging key for live connection identifiers.
	FieldConnID = "conn_id"
	// FieldRole is the standardized structured logging key for device roles.
	FieldRole = "role"
	// FieldEvent is the standardized structured logging key for inbound event names.
	FieldEvent = "event"
	// FieldStep is the standardized structured logging key for posture step labels.
	FieldStep = "step"
	// FieldDistance is the standardized structured logging key for distance variants.
	FieldDistance = "distance"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if id, ok := services.DeviceIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDeviceID, id))
	}
	if id, ok := services.ConnIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldConnID, id))
	}
	if event, ok := services.EventFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEvent, event))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

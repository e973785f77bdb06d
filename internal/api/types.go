package api

import (
	"time"

	"posturesync/internal/catalog"
	"posturesync/internal/recording"
	"posturesync/internal/session"
)

// SessionSnapshot is the full client-facing view of one session. Every
// join and state-change broadcast carries one so a reconnecting client can
// render without extra round trips.
type SessionSnapshot struct {
	ID               string       `json:"id"`
	JoinCode         string       `json:"join_code"`
	Status           string       `json:"status"`
	DesktopConnected bool         `json:"desktop_connected"`
	MobileConnected  bool         `json:"mobile_connected"`
	CreatedAt        time.Time    `json:"created_at"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	Devices          []DeviceInfo `json:"devices"`
}

// DeviceInfo describes one device row within a session.
type DeviceInfo struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	View      string `json:"view"`
	Connected bool   `json:"connected"`
	UserAgent string `json:"user_agent,omitempty"`
}

// StepInfo is the client-facing shape of one catalog step.
type StepInfo struct {
	Ordinal          int    `json:"ordinal"`
	Label            string `json:"label"`
	DisplayName      string `json:"display_name"`
	Instructions     string `json:"instructions,omitempty"`
	CountdownSeconds int    `json:"countdown_seconds"`
	DurationMillis   int    `json:"duration_ms"`
}

// RecordingInfo describes one clip's ledger row.
type RecordingInfo struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	StepLabel    string `json:"step_label"`
	Distance     string `json:"distance"`
	StartedAtMs  int64  `json:"started_at_ms"`
	StoppedAtMs  *int64 `json:"stopped_at_ms,omitempty"`
	DurationMs   *int64 `json:"duration_ms,omitempty"`
	UploadStatus string `json:"upload_status"`
	SizeBytes    *int64 `json:"size_bytes,omitempty"`
	StoragePath  string `json:"storage_path,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// DaemonStatus is the payload behind GET /api/status and the IPC Status op.
type DaemonStatus struct {
	Running         bool   `json:"running"`
	Version         string `json:"version"`
	PID             int    `json:"pid"`
	StartedAt       string `json:"started_at"`
	DatabasePath    string `json:"database_path"`
	StorageProvider string `json:"storage_provider"`
	ActiveSessions  int    `json:"active_sessions"`
	TotalSessions   int    `json:"total_sessions"`
	Connections     int    `json:"connections"`
}

// Snapshot assembles the client view from the domain aggregates.
func Snapshot(sess *session.Session, devices []*session.Device) SessionSnapshot {
	snapshot := SessionSnapshot{
		ID:               sess.ID,
		JoinCode:         sess.JoinCode,
		Status:           string(sess.Status),
		DesktopConnected: sess.DesktopConnected,
		MobileConnected:  sess.MobileConnected,
		CreatedAt:        sess.CreatedAt,
		StartedAt:        sess.StartedAt,
		CompletedAt:      sess.CompletedAt,
		Devices:          make([]DeviceInfo, 0, len(devices)),
	}
	for _, device := range devices {
		snapshot.Devices = append(snapshot.Devices, DeviceInfo{
			ID:        device.ID,
			Role:      string(device.Role),
			View:      string(device.View),
			Connected: device.Connected(),
			UserAgent: device.UserAgent,
		})
	}
	return snapshot
}

// StepPayload converts a catalog step into its wire shape.
func StepPayload(step *catalog.Step) *StepInfo {
	if step == nil {
		return nil
	}
	return &StepInfo{
		Ordinal:          step.Ordinal,
		Label:            step.Label,
		DisplayName:      step.DisplayName,
		Instructions:     step.Instructions,
		CountdownSeconds: step.CountdownSeconds,
		DurationMillis:   step.DurationMillis,
	}
}

// RecordingPayload converts a ledger row into its wire shape.
func RecordingPayload(rec *recording.Recording) RecordingInfo {
	return RecordingInfo{
		ID:           rec.ID,
		Role:         string(rec.Role),
		StepLabel:    rec.StepLabel,
		Distance:     rec.Distance,
		StartedAtMs:  rec.StartedAtMs,
		StoppedAtMs:  rec.StoppedAtMs,
		DurationMs:   rec.DurationMs,
		UploadStatus: string(rec.UploadStatus),
		SizeBytes:    rec.SizeBytes,
		StoragePath:  rec.StoragePath,
		ErrorMessage: rec.ErrorMessage,
	}
}

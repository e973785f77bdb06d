package ipc

import "posturesync/internal/api"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload for IPC callers.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// SessionListRequest lists sessions, newest first.
type SessionListRequest struct {
	Limit int `json:"limit"`
}

// SessionListResponse contains session snapshots.
type SessionListResponse struct {
	Sessions []api.SessionSnapshot `json:"sessions"`
}

// SessionDescribeRequest fetches one session by id or join code.
type SessionDescribeRequest struct {
	ID       string `json:"id"`
	JoinCode string `json:"join_code"`
}

// SessionDescribeResponse contains a session snapshot and its recordings.
type SessionDescribeResponse struct {
	Session    api.SessionSnapshot `json:"session"`
	Recordings []api.RecordingInfo `json:"recordings"`
}

// SessionFailRequest marks a session FAILED after an unrecoverable fault.
type SessionFailRequest struct {
	ID       string `json:"id"`
	JoinCode string `json:"join_code"`
	Reason   string `json:"reason"`
}

// SessionFailResponse carries the terminal session snapshot.
type SessionFailResponse struct {
	Session api.SessionSnapshot `json:"session"`
}

// CatalogListRequest lists the active posture steps.
type CatalogListRequest struct{}

// CatalogListResponse contains the ordered catalog.
type CatalogListResponse struct {
	Steps []api.StepInfo `json:"steps"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

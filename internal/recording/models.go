package recording

import (
	"time"

	"posturesync/internal/session"
)

// UploadStatus tracks one clip's progress from capture to durable storage.
type UploadStatus string

const (
	UploadPending   UploadStatus = "PENDING"
	UploadUploading UploadStatus = "UPLOADING"
	UploadCompleted UploadStatus = "COMPLETED"
	UploadFailed    UploadStatus = "FAILED"
)

// Counted reports whether the status contributes to workflow progress.
// A clip counts once its upload has started; a failed upload does not.
func (s UploadStatus) Counted() bool {
	return s == UploadUploading || s == UploadCompleted
}

// Recording is one device's clip for one (step, distance) combination.
// Start and stop timestamps are the server-issued epoch milliseconds shared
// by both devices of the capture.
type Recording struct {
	ID           string
	SessionID    string
	DeviceID     string
	Role         session.Role
	StepLabel    string
	Distance     string
	StartedAtMs  int64
	StoppedAtMs  *int64
	DurationMs   *int64
	UploadStatus UploadStatus
	SizeBytes    *int64
	StoragePath  string
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}
